package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jiratogitlab/config"
	"jiratogitlab/models"
)

func testMapperConfig() *config.Config {
	return &config.Config{
		GitLabDefaultUser: "root",
		UserMap: map[string]string{
			"Taro Yamada": "taro",
		},
	}
}

func testMembers() []models.GitLabUser {
	return []models.GitLabUser{
		{ID: 1, Username: "root"},
		{ID: 2, Username: "taro"},
	}
}

// マッピング済みユーザーが対応するGitLabユーザーに変換されることを確認します
func TestUserMapperMapped(t *testing.T) {
	mapper, err := NewUserMapper(testMapperConfig(), testMembers())
	require.NoError(t, err)

	user := mapper.Map("Taro Yamada")
	assert.Equal(t, 2, user.ID)
	assert.Equal(t, "taro", user.Username)
	assert.True(t, mapper.IsMapped("Taro Yamada"))
}

// 未マップユーザーはデフォルトユーザーに倒れることを確認します（中断しない）
func TestUserMapperUnmappedFallsBackToDefault(t *testing.T) {
	mapper, err := NewUserMapper(testMapperConfig(), testMembers())
	require.NoError(t, err)

	user := mapper.Map("Unknown Person")
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, "root", user.Username)
	assert.False(t, mapper.IsMapped("Unknown Person"))
}

// マッピング先のログイン名がメンバーにいない場合もデフォルトに倒れることを確認します
func TestUserMapperMappingTargetNotMember(t *testing.T) {
	cfg := testMapperConfig()
	cfg.UserMap["Hanako Suzuki"] = "hanako" // メンバーに存在しない

	mapper, err := NewUserMapper(cfg, testMembers())
	require.NoError(t, err)

	user := mapper.Map("Hanako Suzuki")
	assert.Equal(t, "root", user.Username)
	assert.False(t, mapper.IsMapped("Hanako Suzuki"))
}

// デフォルトユーザーがメンバーにいない場合はエラーになることを確認します
func TestUserMapperDefaultUserMissing(t *testing.T) {
	cfg := testMapperConfig()
	cfg.GitLabDefaultUser = "ghost"

	_, err := NewUserMapper(cfg, testMembers())
	assert.ErrorIs(t, err, models.ErrDestinationRejected)
}

// メンションの置換規則が組み立てられることを確認します
func TestUserMapperMentionReplacements(t *testing.T) {
	mapper, err := NewUserMapper(testMapperConfig(), testMembers())
	require.NoError(t, err)

	jiraUsers := []models.JiraUser{
		{DisplayName: "Taro Yamada", AccountID: "acc1"},
		{DisplayName: "Unknown Person", AccountID: "acc2"},
		{DisplayName: "No Account", AccountID: ""},
	}

	replacements := mapper.MentionReplacements(jiraUsers)
	assert.Len(t, replacements, 2)
	assert.Equal(t, "@taro", replacements[`\[~accountid:acc1\]`])
	assert.Equal(t, "@root", replacements[`\[~accountid:acc2\]`])
}
