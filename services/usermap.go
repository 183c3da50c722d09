package services

import (
	"fmt"
	"regexp"

	"jiratogitlab/config"
	"jiratogitlab/models"
	"jiratogitlab/utils"
)

// UserMapper はJIRAユーザーからGitLabユーザーへの変換を担当します
// マッピングが存在しない場合は設定されたデフォルトユーザーに倒します
// （インポートが未マップユーザーで止まることはありません）
type UserMapper struct {
	mapping     map[string]string // JIRA表示名 → GitLabログイン名
	members     []models.GitLabUser
	defaultUser models.GitLabUser
}

// NewUserMapper は新しいユーザーマッパーを作成します
// デフォルトユーザーがプロジェクトメンバーに存在しない場合はエラーになります
func NewUserMapper(cfg *config.Config, members []models.GitLabUser) (*UserMapper, error) {
	mapper := &UserMapper{
		mapping: cfg.UserMap,
		members: members,
	}

	for _, member := range members {
		if member.Username == cfg.GitLabDefaultUser {
			mapper.defaultUser = member
			break
		}
	}

	if mapper.defaultUser.ID == 0 {
		return nil, fmt.Errorf("%w: デフォルトユーザー '%s' がプロジェクトメンバーに見つかりません",
			models.ErrDestinationRejected, cfg.GitLabDefaultUser)
	}

	return mapper, nil
}

// DefaultUser はフォールバック先のGitLabユーザーを返します
func (u *UserMapper) DefaultUser() models.GitLabUser {
	return u.defaultUser
}

// Map はJIRA表示名をGitLabユーザーに変換します
// 未マップの場合は警告を出してデフォルトユーザーを返します
func (u *UserMapper) Map(displayName string) models.GitLabUser {
	if login, ok := u.mapping[displayName]; ok {
		for _, member := range u.members {
			if member.Username == login {
				return member
			}
		}
		utils.LogWarn("マッピング先 '%s' がプロジェクトメンバーにいません（ユーザー: %s）", login, displayName)
	} else if displayName != "" {
		utils.LogWarn("ユーザー '%s' のマッピングがありません。デフォルトユーザーを使用します", displayName)
	}
	return u.defaultUser
}

// IsMapped はJIRA表示名に対応するGitLabメンバーが存在するかを返します
func (u *UserMapper) IsMapped(displayName string) bool {
	login, ok := u.mapping[displayName]
	if !ok {
		return false
	}
	for _, member := range u.members {
		if member.Username == login {
			return true
		}
	}
	return false
}

// MentionReplacements はJIRAのアカウントIDメンションを
// GitLabの@メンションに置き換える規則を組み立てます
func (u *UserMapper) MentionReplacements(jiraUsers []models.JiraUser) map[string]string {
	replacements := make(map[string]string, len(jiraUsers))
	for _, jiraUser := range jiraUsers {
		if jiraUser.AccountID == "" {
			continue
		}
		key := `\[~accountid:` + regexp.QuoteMeta(jiraUser.AccountID) + `\]`
		replacements[key] = "@" + u.Map(jiraUser.DisplayName).Username
	}
	return replacements
}
