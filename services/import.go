package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"jiratogitlab/api"
	"jiratogitlab/config"
	"jiratogitlab/models"
	"jiratogitlab/utils"
)

// GitLabがサポートするイシューリンクの種類
var supportedLinkTypes = map[string]bool{
	"relates_to":    true,
	"blocks":        true,
	"is_blocked_by": true,
}

// ImportService はJIRAからGitLabへのイシュー移行を処理します
// 書き込み順序（マイルストーン → イシュー → ノート/リンク）は
// issueMapping / milestoneMapping が先に埋まることで保証されます
type ImportService struct {
	config *config.Config
	jira   *api.JiraClient
	gitlab *api.GitLabClient
	mapper *UserMapper

	project models.GitLabProject
	issues  []models.JiraIssue

	issueMapping     models.IssueMapping
	milestoneMapping models.MilestoneMapping
	mentionReplace   map[string]string
}

// NewImportService は新しいインポートサービスを作成します
func NewImportService(cfg *config.Config, jiraClient *api.JiraClient, gitlabClient *api.GitLabClient) *ImportService {
	return &ImportService{
		config:           cfg,
		jira:             jiraClient,
		gitlab:           gitlabClient,
		issueMapping:     make(models.IssueMapping),
		milestoneMapping: make(models.MilestoneMapping),
		mentionReplace:   map[string]string{},
	}
}

// Prepare は両APIの認証確認・ユーザーマッピング・イシュー取得を行います
func (s *ImportService) Prepare() error {
	// JIRA認証チェック
	if err := s.jira.CheckAuth(); err != nil {
		return fmt.Errorf("JIRA認証エラー: %w", err)
	}
	utils.LogInfo("JIRA認証成功")

	// GitLab認証チェック
	if err := s.gitlab.CheckAuth(); err != nil {
		return fmt.Errorf("GitLab認証エラー: %w", err)
	}
	utils.LogInfo("GitLab認証成功")

	// 宛先プロジェクトの取得
	project, err := s.gitlab.GetProject()
	if err != nil {
		return fmt.Errorf("GitLabプロジェクト取得エラー: %w", err)
	}
	s.project = project
	utils.LogInfo("GitLabプロジェクト: %s (id=%d)", project.Name, project.ID)

	// プロジェクトメンバーの取得とマッパーの作成
	members, err := s.gitlab.ListMembers()
	if err != nil {
		return fmt.Errorf("GitLabメンバー取得エラー: %w", err)
	}
	utils.LogInfo("GitLabメンバーを %d 人取得しました", len(members))

	mapper, err := NewUserMapper(s.config, members)
	if err != nil {
		return err
	}
	s.mapper = mapper

	// JIRAユーザーの取得とマッピングの確認
	jiraUsers, err := s.jira.ListAssignableUsers()
	if err != nil {
		return fmt.Errorf("JIRAユーザー取得エラー: %w", err)
	}
	utils.LogInfo("JIRAユーザーを %d 人取得しました", len(jiraUsers))

	unmapped := 0
	for _, jiraUser := range jiraUsers {
		if !s.mapper.IsMapped(jiraUser.DisplayName) {
			utils.LogWarn("ユーザー %s はGitLabに見つかりません", jiraUser.DisplayName)
			unmapped++
		}
	}
	if unmapped > 0 && !s.config.AssumeYes {
		if !utils.Confirm(fmt.Sprintf("%d 人のユーザーが未マップです。デフォルトユーザー '%s' で続行しますか?",
			unmapped, s.mapper.DefaultUser().Username)) {
			return fmt.Errorf("ユーザーマッピングの確認で中断しました")
		}
	}

	s.mentionReplace = s.mapper.MentionReplacements(jiraUsers)

	// JIRAイシューの取得
	issues, err := s.jira.SearchIssues()
	if err != nil {
		return fmt.Errorf("JIRAイシュー取得エラー: %w", err)
	}
	s.issues = issues
	utils.LogInfo("JIRAイシューを %d 件取得しました", len(issues))

	return nil
}

// IssueCount は取得済みJIRAイシューの件数を返します
func (s *ImportService) IssueCount() int {
	return len(s.issues)
}

// Project は宛先プロジェクトを返します（Prepare後に有効）
func (s *ImportService) Project() models.GitLabProject {
	return s.project
}

// Run はインポート処理全体を実行します
func (s *ImportService) Run() error {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "インポート処理全体")

	if err := s.Prepare(); err != nil {
		return err
	}

	if s.IssueCount() == 0 {
		utils.LogWarn("インポート対象がありません。終了します")
		return nil
	}

	if !s.config.AssumeYes {
		if !utils.Confirm(fmt.Sprintf("JIRAプロジェクト %s の %d 件のイシューをGitLabプロジェクト %s にインポートします。続行しますか?",
			s.config.JiraProjectKey, s.IssueCount(), s.project.Name)) {
			utils.LogInfo("インポートを中断しました")
			return nil
		}
	}

	utils.LogInfo("イシューのインポートを開始します")
	imported, err := s.ImportAll()
	if err != nil {
		return err
	}
	utils.LogInfo("イシューを %d 件インポートしました", imported)

	utils.LogInfo("イシューのリンク処理を開始します")
	linked := s.LinkIssues()
	utils.LogInfo("リンクを %d 件作成しました", linked)

	return nil
}

// ImportAll は取得済みの全イシューを順にインポートします
func (s *ImportService) ImportAll() (int, error) {
	imported := 0
	for i := range s.issues {
		if err := s.importIssue(&s.issues[i]); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// findIssue はIDでJIRAイシューを検索します
func (s *ImportService) findIssue(id int) *models.JiraIssue {
	for i := range s.issues {
		if s.issues[i].ID == id {
			return &s.issues[i]
		}
	}
	return nil
}

// importIssue は1件のイシューをインポートします
// 親・リンク先のイシューが未インポートであれば先に再帰的にインポートします
func (s *ImportService) importIssue(issue *models.JiraIssue) error {
	// インポート済みまたは処理中ならスキップ
	if _, ok := s.issueMapping[issue.ID]; ok {
		return nil
	}
	utils.LogInfo("JIRAイシュー %s (id=%d) をインポートします", issue.Key, issue.ID)

	// 再帰からの二重処理を防ぐマーカー
	s.issueMapping[issue.ID] = 0

	// コメントと添付ファイルの取得
	if err := s.jira.FetchDetails(issue); err != nil {
		return err
	}

	// 親・リンク先のイシューを先にインポートする
	linked := make([]int, 0, len(issue.Inward)+len(issue.Outward)+1)
	linked = append(linked, issue.Inward...)
	linked = append(linked, issue.Outward...)
	if issue.Parent != 0 {
		linked = append(linked, issue.Parent)
	}
	for _, linkedID := range linked {
		if _, ok := s.issueMapping[linkedID]; ok {
			continue
		}
		target := s.findIssue(linkedID)
		if target == nil {
			// 他プロジェクトのイシューへのリンクは対象外
			continue
		}
		if err := s.importIssue(target); err != nil {
			return err
		}
	}

	// 置換規則（メンション + このイシューの添付ファイル）
	replace := make(map[string]string, len(s.mentionReplace))
	for k, v := range s.mentionReplace {
		replace[k] = v
	}

	// 添付ファイルのアップロード
	attachmentSection := s.uploadAttachments(issue, replace)

	// 説明文の組み立て
	description := s.buildDescription(issue, replace, attachmentSection)

	// スプリント → マイルストーン（イシュー作成前に必ず存在させる）
	milestoneID := 0
	for _, sprint := range issue.Sprints {
		id, err := s.ensureMilestone(sprint)
		if err != nil {
			return err
		}
		milestoneID = id
	}

	gitlabIssue := models.GitLabIssue{
		Title:       issue.Summary,
		Description: description,
		MilestoneID: milestoneID,
		Labels:      s.buildLabels(issue),
		IssueType:   s.issueType(issue),
		Weight:      issue.TimeEstimate,
	}
	if issue.Assignee != nil {
		gitlabIssue.AssigneeID = s.mapper.Map(issue.Assignee.DisplayName).ID
	}
	if !issue.Created.IsZero() {
		gitlabIssue.CreatedAt = issue.Created.Format(time.RFC3339)
	}
	if !issue.DueDate.IsZero() {
		gitlabIssue.DueDate = issue.DueDate.Format("2006-01-02")
	}

	// 報告者の偽装（不可の場合は本文に作者を記載）
	sudo := ""
	reporterLogin := s.mapper.Map(issue.Reporter.DisplayName).Username
	if s.config.GitLabSudo {
		sudo = reporterLogin
	} else {
		gitlabIssue.Description = fmt.Sprintf("Issue by @%s\n\n", reporterLogin) + gitlabIssue.Description
	}

	// GitLabイシューの作成
	created, err := s.gitlab.CreateIssue(gitlabIssue, sudo)
	if err != nil {
		return fmt.Errorf("イシュー作成エラー (key=%s): %w", issue.Key, err)
	}

	// 消費時間・見積時間の記録
	if issue.TimeSpent > 0 {
		if err := s.gitlab.AddSpentTime(created.IID, fmt.Sprintf("%ds", issue.TimeSpent)); err != nil {
			return fmt.Errorf("消費時間記録エラー (key=%s): %w", issue.Key, err)
		}
	}
	if issue.TimeEstimate > 0 {
		if err := s.gitlab.SetTimeEstimate(created.IID, fmt.Sprintf("%ds", issue.TimeEstimate)); err != nil {
			return fmt.Errorf("見積時間設定エラー (key=%s): %w", issue.Key, err)
		}
	}

	// 完了済みイシューはクローズする
	if issue.Status == "Done" {
		if err := s.gitlab.CloseIssue(created.IID); err != nil {
			return fmt.Errorf("イシュークローズエラー (key=%s): %w", issue.Key, err)
		}
	}

	// コメントのインポート（元の順序のまま）
	for _, comment := range issue.Comments {
		commentText := ""
		commentSudo := ""
		authorLogin := s.mapper.Map(comment.Author.DisplayName).Username
		if s.config.GitLabSudo {
			commentSudo = authorLogin
		} else {
			commentText = fmt.Sprintf("Comment by @%s\n\n", authorLogin)
		}
		commentText += ConvertMarkup(comment.Body, replace)

		if _, err := s.gitlab.CreateNote(created.IID, commentText, commentSudo); err != nil {
			return fmt.Errorf("ノート作成エラー (key=%s): %w", issue.Key, err)
		}
	}

	// メモリ節約のため添付ファイルの実体を解放
	issue.Attachments = nil

	s.issueMapping[issue.ID] = created.IID
	utils.LogInfo("イシュー %s のインポートが完了しました (iid=%d)", issue.Key, created.IID)
	return nil
}

// uploadAttachments は添付ファイルをアップロードし、
// 説明文末尾に付ける添付一覧と本文中の参照置換規則を組み立てます
// （アップロード失敗は警告のみで処理を続行します）
func (s *ImportService) uploadAttachments(issue *models.JiraIssue, replace map[string]string) string {
	var section strings.Builder
	for _, attachment := range issue.Attachments {
		sudo := ""
		if s.config.GitLabSudo {
			sudo = s.mapper.Map(attachment.Author.DisplayName).Username
		}

		uploadURL, err := s.gitlab.UploadFile(attachment.Filename, attachment.Content, sudo)
		if err != nil {
			utils.LogWarn("添付ファイル %s (%dKB) のアップロードに失敗しました: %v",
				attachment.Filename, len(attachment.Content)/1024, err)
			continue
		}

		// 本文中の !file.png! 形式の参照をMarkdownの画像参照に置き換える
		key := "!" + regexp.QuoteMeta(attachment.Filename) + "[^!]*!"
		replace[key] = fmt.Sprintf("![%s](%s)  \n", attachment.Filename, uploadURL)

		section.WriteString(fmt.Sprintf("[%s](%s)  \n", attachment.Filename, uploadURL))
	}
	return section.String()
}

// buildDescription はGitLabイシューの説明文を組み立てます
func (s *ImportService) buildDescription(issue *models.JiraIssue, replace map[string]string, attachmentSection string) string {
	description := ConvertMarkup(issue.Description, replace)

	if attachmentSection != "" {
		description += "  \n  \n---  \n<b>Attachments:</b>  \n" + attachmentSection
	}

	description += fmt.Sprintf("  \n  \n---  \n<small>Jira link: [%s](%s/browse/%s)  \nCreated/updated: %s/%s</small>  \n",
		issue.Key, s.config.JiraURL, issue.Key,
		issue.Created.Format("02.01.2006 15:04:05"),
		issue.Updated.Format("02.01.2006 15:04:05"))

	// インポート済みの親イシューへの参照
	if iid, ok := s.issueMapping[issue.Parent]; ok && iid > 0 {
		description += fmt.Sprintf("<small>Parent issue: %s</small>  \n", s.webIssueURL(iid))
	}

	// インポート済みのリンク先イシューへの参照
	if blockedBy := s.webIssueURLs(issue.Inward); blockedBy != "" {
		description += fmt.Sprintf("<small>Blocked by: %s</small>  \n", blockedBy)
	}
	if related := s.webIssueURLs(issue.Outward); related != "" {
		description += fmt.Sprintf("<small>Related to: %s</small>", related)
	}

	return description
}

// webIssueURL はGitLabイシューのWeb URLを組み立てます
func (s *ImportService) webIssueURL(iid int) string {
	return fmt.Sprintf("%s/%s/-/issues/%d", s.config.GitLabURL, s.project.PathWithNamespace, iid)
}

// webIssueURLs はインポート済みのイシューのWeb URLを空白区切りで返します
func (s *ImportService) webIssueURLs(jiraIDs []int) string {
	var urls []string
	for _, jiraID := range jiraIDs {
		if iid, ok := s.issueMapping[jiraID]; ok && iid > 0 {
			urls = append(urls, s.webIssueURL(iid))
		}
	}
	return strings.Join(urls, " ")
}

// issueType はJIRAイシュータイプをGitLabのイシュータイプに変換します
func (s *ImportService) issueType(issue *models.JiraIssue) string {
	for _, incidentType := range s.config.JiraIncidentTypes {
		if issue.Type == incidentType {
			return "incident"
		}
	}
	return "issue"
}

// buildLabels はJIRAのラベル・ステータス・優先度・タイプからGitLabラベルを組み立てます
func (s *ImportService) buildLabels(issue *models.JiraIssue) string {
	labels := make([]string, 0, len(issue.Labels)+3)
	labels = append(labels, issue.Labels...)
	if issue.Status != "" {
		labels = append(labels, "status::"+strings.ToLower(issue.Status))
	}
	if issue.Priority != "" {
		labels = append(labels, "priority::"+strings.ToLower(issue.Priority))
	}
	if issue.Type != "" {
		if mapped, ok := config.IssueTypeMapping[issue.Type]; ok {
			labels = append(labels, "type::"+mapped)
		} else {
			labels = append(labels, "type::"+issue.Type)
		}
	}
	return strings.Join(labels, ",")
}

// ensureMilestone はスプリントに対応するマイルストーンを用意します
// 同名のマイルストーンが既に存在する場合はそれを再利用します
func (s *ImportService) ensureMilestone(sprint models.JiraSprint) (int, error) {
	if id, ok := s.milestoneMapping[sprint.ID]; ok {
		return id, nil
	}

	existing, err := s.gitlab.ListMilestones(sprint.Name)
	if err != nil {
		return 0, fmt.Errorf("マイルストーン検索エラー (name=%s): %w", sprint.Name, err)
	}
	if len(existing) > 0 {
		s.milestoneMapping[sprint.ID] = existing[0].ID
		return existing[0].ID, nil
	}

	startDate := ""
	if !sprint.StartDate.IsZero() {
		startDate = sprint.StartDate.Format("2006-01-02")
	}
	dueDate := ""
	if !sprint.EndDate.IsZero() {
		dueDate = sprint.EndDate.Format("2006-01-02")
	}

	milestone, err := s.gitlab.CreateMilestone(sprint.Name, startDate, dueDate)
	if err != nil {
		return 0, fmt.Errorf("マイルストーン作成エラー (name=%s): %w", sprint.Name, err)
	}
	utils.LogInfo("マイルストーン %s を作成しました (id=%d)", sprint.Name, milestone.ID)

	if sprint.State == "closed" {
		if err := s.gitlab.CloseMilestone(milestone.ID); err != nil {
			utils.LogWarn("マイルストーン %s のクローズに失敗しました: %v", sprint.Name, err)
		}
	}

	s.milestoneMapping[sprint.ID] = milestone.ID
	return milestone.ID, nil
}

// LinkIssues はインポート済みイシュー同士のリンクを作成します
func (s *ImportService) LinkIssues() int {
	linked := 0
	for i := range s.issues {
		issue := &s.issues[i]
		if issue.Parent != 0 {
			linked += s.createLink(issue.ID, issue.Parent, "blocks")
		}
		for _, dst := range issue.Inward {
			linked += s.createLink(issue.ID, dst, "is_blocked_by")
		}
		for _, dst := range issue.Outward {
			linked += s.createLink(issue.ID, dst, "relates_to")
		}
	}
	return linked
}

// createLink は2つのJIRAイシューIDに対応するGitLabイシューをリンクします
// どちらかが未インポートの場合は何もしません
// サポート外のリンク種別は警告を出して破棄します（致命的エラーにはしません）
func (s *ImportService) createLink(jiraSrcID, jiraDstID int, linkType string) int {
	srcIID, srcOK := s.issueMapping[jiraSrcID]
	dstIID, dstOK := s.issueMapping[jiraDstID]
	if !srcOK || !dstOK || srcIID == 0 || dstIID == 0 {
		return 0
	}

	if !supportedLinkTypes[linkType] {
		utils.LogWarn("サポート外のリンク種別 %s を破棄します (src=%d, dst=%d)", linkType, jiraSrcID, jiraDstID)
		return 0
	}

	// blocks / is_blocked_by はGitLab Premiumのみ
	if !s.config.GitLabPremium {
		linkType = "relates_to"
	}

	if err := s.gitlab.CreateIssueLink(srcIID, dstIID, linkType); err != nil {
		utils.LogWarn("リンク作成に失敗しました (src=%d, dst=%d, type=%s): %v", jiraSrcID, jiraDstID, linkType, err)
	}
	return 1
}
