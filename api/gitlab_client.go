package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"jiratogitlab/config"
	"jiratogitlab/models"
)

// GitLabのイシュー一覧取得の1ページあたり件数
const gitlabPageSize = 100

// GitLabClient はGitLab APIへの書き込みを処理します
type GitLabClient struct {
	config *config.Config
	client *http.Client
}

// NewGitLabClient は新しいGitLabクライアントを作成します
func NewGitLabClient(cfg *config.Config) *GitLabClient {
	return &GitLabClient{
		config: cfg,
		client: &http.Client{},
	}
}

// apiURL はGitLab API v4のURLを組み立てます
func (g *GitLabClient) apiURL(path string) string {
	return fmt.Sprintf("%s/api/v4%s", g.config.GitLabURL, path)
}

// projectURL はプロジェクト配下のAPI URLを組み立てます
func (g *GitLabClient) projectURL(path string) string {
	return g.apiURL(fmt.Sprintf("/projects/%d%s", g.config.GitLabProjectID, path))
}

// do は認証ヘッダー付きでリクエストを送信します
// （sudoが空でない場合はSUDOヘッダーでユーザーを偽装します）
func (g *GitLabClient) do(method, url string, body io.Reader, contentType, sudo string) (*http.Response, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.Header.Set("PRIVATE-TOKEN", g.config.GitLabToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if sudo != "" {
		req.Header.Set("SUDO", sudo)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: リクエスト送信エラー: %v", models.ErrDestinationRejected, err)
	}

	return resp, nil
}

// doJSON はJSONペイロード付きでリクエストを送信します
func (g *GitLabClient) doJSON(method, url string, payload interface{}, sudo string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("JSONエンコードエラー: %w", err)
		}
		body = bytes.NewBuffer(payloadBytes)
	}
	return g.do(method, url, body, "application/json", sudo)
}

// CheckAuth はGitLab認証をチェックします
func (g *GitLabClient) CheckAuth() error {
	resp, err := g.do("GET", g.apiURL("/user"), nil, "", "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: 認証失敗: %s", models.ErrDestinationRejected, string(body))
	}

	return nil
}

// GetProject は宛先プロジェクトの情報を取得します
func (g *GitLabClient) GetProject() (models.GitLabProject, error) {
	resp, err := g.do("GET", g.projectURL(""), nil, "", "")
	if err != nil {
		return models.GitLabProject{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.GitLabProject{}, fmt.Errorf("%w: プロジェクト取得失敗 (id=%d): %s",
			models.ErrDestinationRejected, g.config.GitLabProjectID, string(body))
	}

	var raw struct {
		ID                int    `json:"id"`
		Name              string `json:"name"`
		PathWithNamespace string `json:"path_with_namespace"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.GitLabProject{}, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return models.GitLabProject{
		ID:                raw.ID,
		Name:              raw.Name,
		PathWithNamespace: raw.PathWithNamespace,
	}, nil
}

// ListMembers はプロジェクトのメンバー一覧を取得します
func (g *GitLabClient) ListMembers() ([]models.GitLabUser, error) {
	resp, err := g.do("GET", g.projectURL("/users"), nil, "", "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: メンバー取得失敗: %s", models.ErrDestinationRejected, string(body))
	}

	var rawUsers []struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rawUsers); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	users := make([]models.GitLabUser, 0, len(rawUsers))
	for _, u := range rawUsers {
		users = append(users, models.GitLabUser{ID: u.ID, Username: u.Username})
	}
	return users, nil
}

// ListMilestones はタイトルでマイルストーンを検索します（空文字で全件）
func (g *GitLabClient) ListMilestones(title string) ([]models.GitLabMilestone, error) {
	requestURL := g.projectURL("/milestones")
	if title != "" {
		requestURL = fmt.Sprintf("%s?title=%s", requestURL, url.QueryEscape(title))
	}

	resp, err := g.do("GET", requestURL, nil, "", "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: マイルストーン取得失敗: %s", models.ErrDestinationRejected, string(body))
	}

	var rawMilestones []struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rawMilestones); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	milestones := make([]models.GitLabMilestone, 0, len(rawMilestones))
	for _, m := range rawMilestones {
		milestones = append(milestones, models.GitLabMilestone{ID: m.ID, Title: m.Title})
	}
	return milestones, nil
}

// CreateMilestone はマイルストーンを作成します（日付は空文字で省略）
func (g *GitLabClient) CreateMilestone(title, startDate, dueDate string) (models.GitLabMilestone, error) {
	payload := map[string]string{"title": title}
	if startDate != "" {
		payload["start_date"] = startDate
	}
	if dueDate != "" {
		payload["due_date"] = dueDate
	}

	resp, err := g.doJSON("POST", g.projectURL("/milestones"), payload, "")
	if err != nil {
		return models.GitLabMilestone{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return models.GitLabMilestone{}, fmt.Errorf("%w: マイルストーン作成失敗 (title=%s): %s",
			models.ErrDestinationRejected, title, string(body))
	}

	var raw struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.GitLabMilestone{}, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return models.GitLabMilestone{ID: raw.ID, Title: raw.Title}, nil
}

// CloseMilestone はマイルストーンをクローズします
func (g *GitLabClient) CloseMilestone(milestoneID int) error {
	payload := map[string]string{"state_event": "close"}

	resp, err := g.doJSON("PUT", g.projectURL(fmt.Sprintf("/milestones/%d", milestoneID)), payload, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: マイルストーンクローズ失敗 (id=%d): %s",
			models.ErrDestinationRejected, milestoneID, string(body))
	}

	return nil
}

// DeleteMilestone はマイルストーンを削除します
func (g *GitLabClient) DeleteMilestone(milestoneID int) error {
	resp, err := g.do("DELETE", g.projectURL(fmt.Sprintf("/milestones/%d", milestoneID)), nil, "", "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: マイルストーン削除失敗 (id=%d): %s",
			models.ErrDestinationRejected, milestoneID, string(body))
	}

	return nil
}

// ListIssues はプロジェクトの全イシューをページ単位で取得します
func (g *GitLabClient) ListIssues() ([]models.GitLabIssueRef, error) {
	var issues []models.GitLabIssueRef
	page := 1

	for {
		url := g.projectURL(fmt.Sprintf("/issues?scope=all&per_page=%d&page=%d", gitlabPageSize, page))

		resp, err := g.do("GET", url, nil, "", "")
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("%w: イシュー一覧取得失敗: %s", models.ErrDestinationRejected, string(body))
		}

		var rawIssues []struct {
			ID        int    `json:"id"`
			IID       int    `json:"iid"`
			ProjectID int    `json:"project_id"`
			Title     string `json:"title"`
		}
		err = json.NewDecoder(resp.Body).Decode(&rawIssues)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
		}

		for _, i := range rawIssues {
			issues = append(issues, models.GitLabIssueRef{
				ID:        i.ID,
				IID:       i.IID,
				ProjectID: i.ProjectID,
				Title:     i.Title,
			})
		}

		if len(rawIssues) < gitlabPageSize {
			break
		}
		page++
	}

	return issues, nil
}

// CreateIssue はGitLabイシューを作成します
func (g *GitLabClient) CreateIssue(issue models.GitLabIssue, sudo string) (models.GitLabIssueRef, error) {
	payload := map[string]interface{}{
		"title":       issue.Title,
		"description": issue.Description,
		"issue_type":  issue.IssueType,
	}
	if issue.AssigneeID > 0 {
		payload["assignee_id"] = issue.AssigneeID
	}
	if issue.MilestoneID > 0 {
		payload["milestone_id"] = issue.MilestoneID
	}
	if issue.Labels != "" {
		payload["labels"] = issue.Labels
	}
	if issue.CreatedAt != "" {
		payload["created_at"] = issue.CreatedAt
	}
	if issue.DueDate != "" {
		payload["due_date"] = issue.DueDate
	}
	if issue.Weight > 0 {
		payload["weight"] = issue.Weight
	}

	resp, err := g.doJSON("POST", g.projectURL("/issues"), payload, sudo)
	if err != nil {
		return models.GitLabIssueRef{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return models.GitLabIssueRef{}, fmt.Errorf("%w: イシュー作成失敗 (title=%s): %s",
			models.ErrDestinationRejected, issue.Title, string(body))
	}

	var raw struct {
		ID        int    `json:"id"`
		IID       int    `json:"iid"`
		ProjectID int    `json:"project_id"`
		Title     string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.GitLabIssueRef{}, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return models.GitLabIssueRef{
		ID:        raw.ID,
		IID:       raw.IID,
		ProjectID: raw.ProjectID,
		Title:     raw.Title,
	}, nil
}

// DeleteIssue はイシューを削除します
func (g *GitLabClient) DeleteIssue(issueIID int) error {
	resp, err := g.do("DELETE", g.projectURL(fmt.Sprintf("/issues/%d", issueIID)), nil, "", "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: イシュー削除失敗 (iid=%d): %s",
			models.ErrDestinationRejected, issueIID, string(body))
	}

	return nil
}

// CloseIssue はイシューをクローズします
func (g *GitLabClient) CloseIssue(issueIID int) error {
	payload := map[string]string{"state_event": "close"}

	resp, err := g.doJSON("PUT", g.projectURL(fmt.Sprintf("/issues/%d", issueIID)), payload, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: イシュークローズ失敗 (iid=%d): %s",
			models.ErrDestinationRejected, issueIID, string(body))
	}

	return nil
}

// AddSpentTime はイシューに消費時間を記録します（例: "3600s"）
func (g *GitLabClient) AddSpentTime(issueIID int, duration string) error {
	url := g.projectURL(fmt.Sprintf("/issues/%d/add_spent_time?duration=%s", issueIID, duration))

	resp, err := g.do("POST", url, nil, "", "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: 消費時間記録失敗 (iid=%d): %s",
			models.ErrDestinationRejected, issueIID, string(body))
	}

	return nil
}

// SetTimeEstimate はイシューに見積時間を設定します（例: "7200s"）
func (g *GitLabClient) SetTimeEstimate(issueIID int, duration string) error {
	url := g.projectURL(fmt.Sprintf("/issues/%d/time_estimate?duration=%s", issueIID, duration))

	resp, err := g.do("POST", url, nil, "", "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: 見積時間設定失敗 (iid=%d): %s",
			models.ErrDestinationRejected, issueIID, string(body))
	}

	return nil
}

// CreateNote はイシューにノート（コメント）を作成します
func (g *GitLabClient) CreateNote(issueIID int, body, sudo string) (int, error) {
	payload := map[string]string{"body": body}

	resp, err := g.doJSON("POST", g.projectURL(fmt.Sprintf("/issues/%d/notes", issueIID)), payload, sudo)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("%w: ノート作成失敗 (iid=%d): %s",
			models.ErrDestinationRejected, issueIID, string(respBody))
	}

	var raw struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return raw.ID, nil
}

// UploadFile はファイルをプロジェクトにアップロードしてMarkdown参照用URLを返します
// （ファイル名はUUIDに置き換え、元の拡張子のみ保持します）
func (g *GitLabClient) UploadFile(filename string, content []byte, sudo string) (string, error) {
	extension := strings.ToLower(filepath.Ext(filename))
	uploadName := uuid.New().String() + extension

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", uploadName)
	if err != nil {
		return "", fmt.Errorf("multipartフォーム作成エラー: %w", err)
	}

	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("ファイル書き込みエラー: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("writerクローズエラー: %w", err)
	}

	resp, err := g.do("POST", g.projectURL("/uploads"), body, writer.FormDataContentType(), sudo)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: アップロード失敗 (file=%s): %s",
			models.ErrDestinationRejected, filename, string(respBody))
	}

	var raw struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	if raw.URL == "" {
		return "", fmt.Errorf("%w: アップロードレスポンスにURLがありません (file=%s)",
			models.ErrDestinationRejected, filename)
	}

	return raw.URL, nil
}

// CreateIssueLink は2つのイシューをリンクします
func (g *GitLabClient) CreateIssueLink(sourceIID, targetIID int, linkType string) error {
	payload := map[string]interface{}{
		"target_project_id": g.config.GitLabProjectID,
		"target_issue_iid":  targetIID,
		"link_type":         linkType,
	}

	resp, err := g.doJSON("POST", g.projectURL(fmt.Sprintf("/issues/%d/links", sourceIID)), payload, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: イシューリンク作成失敗 (src=%d, dst=%d, type=%s): %s",
			models.ErrDestinationRejected, sourceIID, targetIID, linkType, string(body))
	}

	return nil
}
