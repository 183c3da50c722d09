package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"jiratogitlab/config"
	"jiratogitlab/models"
	"jiratogitlab/utils"
)

// JIRA APIの日時フォーマット
const (
	jiraDateTimeFormat = "2006-01-02T15:04:05.000-0700"
	jiraDateFormat     = "2006-01-02"
)

// 1回の検索リクエストで取得するイシュー数
const jiraSearchPageSize = 100

// JiraClient はJIRA APIからの読み取りを処理します（書き込みは行いません）
type JiraClient struct {
	config *config.Config
	client *http.Client
}

// NewJiraClient は新しいJIRAクライアントを作成します
func NewJiraClient(cfg *config.Config) *JiraClient {
	return &JiraClient{
		config: cfg,
		client: &http.Client{},
	}
}

// get は認証付きGETリクエストを送信します
func (j *JiraClient) get(url string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: リクエスト送信エラー: %v", models.ErrSourceUnavailable, err)
	}

	return resp, nil
}

// CheckAuth はJIRA認証をチェックします
func (j *JiraClient) CheckAuth() error {
	url := fmt.Sprintf("%s/rest/api/2/myself", j.config.JiraURL)

	resp, err := j.get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: 認証失敗: %s", models.ErrSourceUnavailable, string(body))
	}

	return nil
}

// jiraUserJSON はJIRAユーザーのレスポンス表現です
type jiraUserJSON struct {
	DisplayName string `json:"displayName"`
	AccountID   string `json:"accountId"`
}

func (u *jiraUserJSON) toModel() models.JiraUser {
	return models.JiraUser{DisplayName: u.DisplayName, AccountID: u.AccountID}
}

// ListAssignableUsers はプロジェクトに割り当て可能なJIRAユーザーの一覧を取得します
func (j *JiraClient) ListAssignableUsers() ([]models.JiraUser, error) {
	url := fmt.Sprintf("%s/rest/api/2/user/assignable/search?project=%s",
		j.config.JiraURL, j.config.JiraProjectKey)

	resp, err := j.get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: ユーザー取得失敗: %s", models.ErrSourceUnavailable, string(body))
	}

	var rawUsers []jiraUserJSON
	if err := json.NewDecoder(resp.Body).Decode(&rawUsers); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	users := make([]models.JiraUser, 0, len(rawUsers))
	for _, u := range rawUsers {
		users = append(users, u.toModel())
	}
	return users, nil
}

// jiraSearchResponse は検索APIのレスポンスです
type jiraSearchResponse struct {
	StartAt    int               `json:"startAt"`
	MaxResults int               `json:"maxResults"`
	Total      int               `json:"total"`
	Issues     []json.RawMessage `json:"issues"`
}

// SearchIssues はプロジェクトの全イシューをページ単位で取得します
// （ID昇順、1ページ100件のJQL検索を繰り返します）
func (j *JiraClient) SearchIssues() ([]models.JiraIssue, error) {
	var issues []models.JiraIssue
	startAt := 0

	for {
		url := fmt.Sprintf("%s/rest/api/2/search?jql=project=%s+ORDER+BY+id+ASC&maxResults=%d&startAt=%d",
			j.config.JiraURL, j.config.JiraProjectKey, jiraSearchPageSize, startAt)

		resp, err := j.get(url)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("%w: イシュー検索失敗 (project=%s): %s",
				models.ErrSourceUnavailable, j.config.JiraProjectKey, string(body))
		}

		var page jiraSearchResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
		}

		for _, raw := range page.Issues {
			issue, err := j.parseIssue(raw)
			if err != nil {
				return nil, fmt.Errorf("イシュー解析エラー: %w", err)
			}
			issues = append(issues, issue)
		}

		startAt += jiraSearchPageSize
		if startAt > page.Total {
			break
		}
	}

	return issues, nil
}

// jiraNamed は {"name": "..."} 形式のフィールドです
type jiraNamed struct {
	Name string `json:"name"`
}

// jiraIssueEnvelope はイシューの外側の構造です
type jiraIssueEnvelope struct {
	ID     string          `json:"id"`
	Self   string          `json:"self"`
	Key    string          `json:"key"`
	Fields json.RawMessage `json:"fields"`
}

// jiraIssueFields はイシューの標準フィールドです
type jiraIssueFields struct {
	Summary      string        `json:"summary"`
	Description  string        `json:"description"`
	Created      string        `json:"created"`
	Updated      string        `json:"updated"`
	DueDate      string        `json:"duedate"`
	Reporter     *jiraUserJSON `json:"reporter"`
	Assignee     *jiraUserJSON `json:"assignee"`
	TimeSpent    int           `json:"timespent"`
	TimeEstimate int           `json:"timeoriginalestimate"`
	IssueType    jiraNamed     `json:"issuetype"`
	Priority     jiraNamed     `json:"priority"`
	Status       jiraNamed     `json:"status"`
	Labels       []string      `json:"labels"`
	Parent       *struct {
		ID string `json:"id"`
	} `json:"parent"`
	IssueLinks []struct {
		InwardIssue *struct {
			ID string `json:"id"`
		} `json:"inwardIssue"`
		OutwardIssue *struct {
			ID string `json:"id"`
		} `json:"outwardIssue"`
	} `json:"issuelinks"`
}

// jiraSprintJSON はスプリントカスタムフィールドの1要素です
type jiraSprintJSON struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// parseIssue は検索レスポンスの1イシューをモデルに変換します
func (j *JiraClient) parseIssue(raw json.RawMessage) (models.JiraIssue, error) {
	var envelope jiraIssueEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return models.JiraIssue{}, fmt.Errorf("イシュー構造の解析エラー: %w", err)
	}

	id, err := strconv.Atoi(envelope.ID)
	if err != nil {
		return models.JiraIssue{}, fmt.Errorf("イシューID解析エラー: %w", err)
	}

	var fields jiraIssueFields
	if err := json.Unmarshal(envelope.Fields, &fields); err != nil {
		return models.JiraIssue{}, fmt.Errorf("フィールド解析エラー (key=%s): %w", envelope.Key, err)
	}

	issue := models.JiraIssue{
		ID:           id,
		Self:         envelope.Self,
		Key:          envelope.Key,
		Summary:      fields.Summary,
		Description:  fields.Description,
		TimeSpent:    fields.TimeSpent,
		TimeEstimate: fields.TimeEstimate,
		Type:         fields.IssueType.Name,
		Priority:     fields.Priority.Name,
		Status:       fields.Status.Name,
		Labels:       fields.Labels,
	}

	issue.Created = parseJiraDateTime(fields.Created)
	issue.Updated = parseJiraDateTime(fields.Updated)
	if fields.DueDate != "" {
		if t, err := time.Parse(jiraDateFormat, fields.DueDate); err == nil {
			issue.DueDate = t
		}
	}

	if fields.Reporter != nil {
		issue.Reporter = fields.Reporter.toModel()
	}
	if fields.Assignee != nil {
		assignee := fields.Assignee.toModel()
		issue.Assignee = &assignee
	}

	if fields.Parent != nil {
		if parentID, err := strconv.Atoi(fields.Parent.ID); err == nil {
			issue.Parent = parentID
		}
	}

	for _, link := range fields.IssueLinks {
		if link.InwardIssue != nil {
			if linkID, err := strconv.Atoi(link.InwardIssue.ID); err == nil {
				issue.Inward = append(issue.Inward, linkID)
			}
		}
		if link.OutwardIssue != nil {
			if linkID, err := strconv.Atoi(link.OutwardIssue.ID); err == nil {
				issue.Outward = append(issue.Outward, linkID)
			}
		}
	}

	// スプリントは設定されたカスタムフィールドから取り出す
	issue.Sprints = j.parseSprints(envelope.Fields, envelope.Key)

	return issue, nil
}

// parseSprints はカスタムフィールドからスプリント一覧を取り出します
func (j *JiraClient) parseSprints(fieldsRaw json.RawMessage, issueKey string) []models.JiraSprint {
	var allFields map[string]json.RawMessage
	if err := json.Unmarshal(fieldsRaw, &allFields); err != nil {
		return nil
	}

	sprintRaw, ok := allFields[j.config.JiraMilestoneField]
	if !ok || string(sprintRaw) == "null" {
		return nil
	}

	var rawSprints []jiraSprintJSON
	if err := json.Unmarshal(sprintRaw, &rawSprints); err != nil {
		utils.LogWarn("イシュー %s のスプリントフィールド解析に失敗: %v", issueKey, err)
		return nil
	}

	sprints := make([]models.JiraSprint, 0, len(rawSprints))
	for _, s := range rawSprints {
		sprint := models.JiraSprint{
			ID:    s.ID,
			Name:  s.Name,
			State: s.State,
		}
		sprint.StartDate = parseJiraDateTime(s.StartDate)
		sprint.EndDate = parseJiraDateTime(s.EndDate)
		sprints = append(sprints, sprint)
	}
	return sprints
}

// jiraDetailFields はイシュー詳細のコメント・添付部分です
type jiraDetailFields struct {
	Fields struct {
		Attachment []struct {
			Author   jiraUserJSON `json:"author"`
			Filename string       `json:"filename"`
			Content  string       `json:"content"`
		} `json:"attachment"`
		Comment struct {
			Comments []struct {
				Author  jiraUserJSON `json:"author"`
				Body    string       `json:"body"`
				Created string       `json:"created"`
			} `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
}

// FetchDetails はイシューのコメントと添付ファイルを取得して埋め込みます
// （添付ファイルの実体もダウンロードします）
func (j *JiraClient) FetchDetails(issue *models.JiraIssue) error {
	resp, err := j.get(issue.Self)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: イシュー詳細取得失敗 (key=%s): %s",
			models.ErrSourceUnavailable, issue.Key, string(body))
	}

	var detail jiraDetailFields
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return fmt.Errorf("イシュー詳細解析エラー (key=%s): %w", issue.Key, err)
	}

	attachments := make([]models.JiraAttachment, 0, len(detail.Fields.Attachment))
	for _, a := range detail.Fields.Attachment {
		content, err := j.DownloadAttachment(a.Content)
		if err != nil {
			return fmt.Errorf("添付ファイル取得エラー (key=%s, file=%s): %w", issue.Key, a.Filename, err)
		}
		attachments = append(attachments, models.JiraAttachment{
			Author:   a.Author.toModel(),
			Filename: a.Filename,
			Content:  content,
		})
	}
	issue.Attachments = attachments

	comments := make([]models.JiraComment, 0, len(detail.Fields.Comment.Comments))
	for _, c := range detail.Fields.Comment.Comments {
		comments = append(comments, models.JiraComment{
			Author:  c.Author.toModel(),
			Body:    c.Body,
			Created: parseJiraDateTime(c.Created),
		})
	}
	issue.Comments = comments

	return nil
}

// DownloadAttachment は添付ファイルの実体をダウンロードします
func (j *JiraClient) DownloadAttachment(contentURL string) ([]byte, error) {
	req, err := http.NewRequest("GET", contentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: リクエスト送信エラー: %v", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: ダウンロード失敗: %s", models.ErrSourceUnavailable, string(body))
	}

	return io.ReadAll(resp.Body)
}

// parseJiraDateTime はJIRAの日時文字列を解析します（失敗時はゼロ値）
func parseJiraDateTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(jiraDateTimeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
