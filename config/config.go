package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v2"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// JIRA API設定
	JiraURL            string
	JiraEmail          string
	JiraAPIToken       string
	JiraProjectKey     string
	JiraMilestoneField string
	JiraIncidentTypes  []string

	// GitLab API設定
	GitLabURL         string
	GitLabToken       string
	GitLabProjectID   int
	GitLabDefaultUser string
	GitLabSudo        bool
	GitLabPremium     bool

	// ユーザーマッピング（JIRA表示名 → GitLabログイン名）
	UserMapFile string
	UserMap     map[string]string

	// 動作オプション
	DeleteExistingIssues bool
	AssumeYes            bool
}

// IssueTypeMapping はJIRAイシュータイプからGitLabのtype::ラベルへのマッピングです
var IssueTypeMapping = map[string]string{
	"Bug":         "bug",
	"Improvement": "improvement",
	"Spike":       "spike",
	"Story":       "story",
	"story":       "story",
	"Task":        "task",
	"Subtask":     "subtask",
	"Epic":        "epic",
	"epic":        "epic",
}

// userMapFile はユーザーマッピングYAMLファイルの構造です
type userMapFile struct {
	Users map[string]string `yaml:"users"`
}

// LoadConfig は環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	// .envファイルを読み込む
	_ = godotenv.Load()

	config := &Config{
		JiraURL:            strings.TrimRight(os.Getenv("JIRA_URL"), "/"),
		JiraEmail:          os.Getenv("JIRA_EMAIL"),
		JiraAPIToken:       os.Getenv("JIRA_API_TOKEN"),
		JiraProjectKey:     os.Getenv("JIRA_PROJECT_KEY"),
		JiraMilestoneField: getEnvWithDefault("JIRA_MILESTONE_FIELD", "customfield_10000"),
		JiraIncidentTypes:  splitCommaList(getEnvWithDefault("JIRA_INCIDENT_TYPES", "Bug,bug")),

		GitLabURL:         strings.TrimRight(os.Getenv("GITLAB_URL"), "/"),
		GitLabToken:       os.Getenv("GITLAB_TOKEN"),
		GitLabProjectID:   getEnvAsIntWithDefault("GITLAB_PROJECT_ID", 0),
		GitLabDefaultUser: getEnvWithDefault("GITLAB_DEFAULT_USER", "root"),
		GitLabSudo:        getEnvAsBoolWithDefault("GITLAB_SUDO", true),
		GitLabPremium:     getEnvAsBoolWithDefault("GITLAB_PREMIUM", false),

		UserMapFile: getEnvWithDefault("USER_MAP_FILE", "user_map.yaml"),
		UserMap:     map[string]string{},

		DeleteExistingIssues: getEnvAsBoolWithDefault("DELETE_EXISTING_ISSUES", false),
		AssumeYes:            getEnvAsBoolWithDefault("ASSUME_YES", false),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	// ユーザーマッピングファイルの読み込み（存在しない場合は空のまま）
	if err := config.loadUserMap(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate は必須の設定項目が揃っているかを確認します
func (c *Config) validate() error {
	var missing []string
	if c.JiraURL == "" {
		missing = append(missing, "JIRA_URL")
	}
	if c.JiraEmail == "" {
		missing = append(missing, "JIRA_EMAIL")
	}
	if c.JiraAPIToken == "" {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if c.JiraProjectKey == "" {
		missing = append(missing, "JIRA_PROJECT_KEY")
	}
	if c.GitLabURL == "" {
		missing = append(missing, "GITLAB_URL")
	}
	if c.GitLabToken == "" {
		missing = append(missing, "GITLAB_TOKEN")
	}
	if c.GitLabProjectID == 0 {
		missing = append(missing, "GITLAB_PROJECT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	return nil
}

// loadUserMap はYAMLファイルからユーザーマッピングを読み込みます
func (c *Config) loadUserMap() error {
	data, err := os.ReadFile(c.UserMapFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // マッピングなしで続行（未マップユーザーはデフォルトユーザーになる）
		}
		return fmt.Errorf("ユーザーマッピングファイル読み込みエラー: %w", err)
	}

	var file userMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("ユーザーマッピングファイル解析エラー: %w", err)
	}

	if file.Users != nil {
		c.UserMap = file.Users
	}
	return nil
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を整数として取得
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// デフォルト値付きで環境変数を真偽値として取得
func getEnvAsBoolWithDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// カンマ区切りの文字列をスライスに分割
func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
