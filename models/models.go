package models

import (
	"errors"
	"time"
)

// ErrSourceUnavailable はJIRA側の致命的エラー（認証失敗・プロジェクト不在など）を表します
var ErrSourceUnavailable = errors.New("ソース(JIRA)が利用できません")

// ErrDestinationRejected はGitLab側の致命的エラー（認証・権限・バリデーション）を表します
var ErrDestinationRejected = errors.New("宛先(GitLab)に拒否されました")

// JiraUser はJIRAのユーザーを表します
type JiraUser struct {
	DisplayName string
	AccountID   string
}

// JiraSprint はJIRAのスプリント（GitLabマイルストーンに対応）を表します
type JiraSprint struct {
	ID        int
	Name      string
	State     string
	StartDate time.Time
	EndDate   time.Time
}

// JiraComment はJIRAイシューのコメントを表します
type JiraComment struct {
	Author  JiraUser
	Body    string
	Created time.Time
}

// JiraAttachment はJIRAイシューの添付ファイルを表します
type JiraAttachment struct {
	Author   JiraUser
	Filename string
	Content  []byte
}

// JiraIssue はJIRAのイシューを表します
type JiraIssue struct {
	ID           int
	Self         string // イシュー詳細のAPI URL
	Key          string // PROJECT-123 形式
	Created      time.Time
	Updated      time.Time
	DueDate      time.Time
	Summary      string
	Description  string
	Reporter     JiraUser
	Assignee     *JiraUser
	TimeSpent    int // 秒
	TimeEstimate int // 秒
	Type         string
	Priority     string
	Status       string
	Labels       []string
	Parent       int   // 親イシューのID（0は親なし）
	Inward       []int // このイシューをブロックするイシューのID
	Outward      []int // このイシューに関連するイシューのID
	Sprints      []JiraSprint
	Comments     []JiraComment
	Attachments  []JiraAttachment
}

// GitLabUser はGitLabのユーザーを表します
type GitLabUser struct {
	ID       int
	Username string
}

// GitLabProject はGitLabのプロジェクトを表します
type GitLabProject struct {
	ID                int
	Name              string
	PathWithNamespace string
}

// GitLabIssue はGitLabイシューの作成ペイロードを表します
type GitLabIssue struct {
	Title       string
	Description string
	AssigneeID  int
	MilestoneID int
	Labels      string // カンマ区切り
	IssueType   string // "issue" または "incident"
	CreatedAt   string // ISO 8601
	DueDate     string // YYYY-MM-DD
	Weight      int
}

// GitLabIssueRef は作成済み・取得済みのGitLabイシューを表します
type GitLabIssueRef struct {
	ID        int
	IID       int
	ProjectID int
	Title     string
}

// GitLabMilestone はGitLabのマイルストーンを表します
type GitLabMilestone struct {
	ID    int
	Title string
}

// IssueMapping はJIRAイシューIDとGitLabイシューIIDのマッピングを表します
// （0は「処理中」のマーカーとして使用）
type IssueMapping map[int]int

// MilestoneMapping はJIRAスプリントIDとGitLabマイルストーンIDのマッピングを表します
type MilestoneMapping map[int]int
