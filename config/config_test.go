package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// テスト用に必須の環境変数を一式設定します
func setRequiredEnv(t *testing.T) {
	t.Setenv("JIRA_URL", "https://example.atlassian.net/")
	t.Setenv("JIRA_EMAIL", "user@example.com")
	t.Setenv("JIRA_API_TOKEN", "token")
	t.Setenv("JIRA_PROJECT_KEY", "PROJ")
	t.Setenv("GITLAB_URL", "https://gitlab.example.com/")
	t.Setenv("GITLAB_TOKEN", "glpat")
	t.Setenv("GITLAB_PROJECT_ID", "42")
	// 作業ディレクトリのマッピングファイルを拾わないようにする
	t.Setenv("USER_MAP_FILE", filepath.Join(t.TempDir(), "user_map.yaml"))
}

// 必須項目の読み込みとデフォルト値を確認します
func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)

	config, err := LoadConfig()
	require.NoError(t, err)

	// 末尾スラッシュは除去される
	assert.Equal(t, "https://example.atlassian.net", config.JiraURL)
	assert.Equal(t, "https://gitlab.example.com", config.GitLabURL)
	assert.Equal(t, "PROJ", config.JiraProjectKey)
	assert.Equal(t, 42, config.GitLabProjectID)

	// デフォルト値
	assert.Equal(t, "customfield_10000", config.JiraMilestoneField)
	assert.Equal(t, []string{"Bug", "bug"}, config.JiraIncidentTypes)
	assert.Equal(t, "root", config.GitLabDefaultUser)
	assert.True(t, config.GitLabSudo)
	assert.False(t, config.GitLabPremium)
	assert.False(t, config.DeleteExistingIssues)
	assert.False(t, config.AssumeYes)
	assert.Empty(t, config.UserMap)
}

// 環境変数によるデフォルト値の上書きを確認します
func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JIRA_MILESTONE_FIELD", "customfield_20000")
	t.Setenv("JIRA_INCIDENT_TYPES", "Bug, Incident ,bug")
	t.Setenv("GITLAB_DEFAULT_USER", "admin")
	t.Setenv("GITLAB_SUDO", "false")
	t.Setenv("GITLAB_PREMIUM", "true")
	t.Setenv("DELETE_EXISTING_ISSUES", "true")
	t.Setenv("ASSUME_YES", "true")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "customfield_20000", config.JiraMilestoneField)
	assert.Equal(t, []string{"Bug", "Incident", "bug"}, config.JiraIncidentTypes)
	assert.Equal(t, "admin", config.GitLabDefaultUser)
	assert.False(t, config.GitLabSudo)
	assert.True(t, config.GitLabPremium)
	assert.True(t, config.DeleteExistingIssues)
	assert.True(t, config.AssumeYes)
}

// 必須の環境変数が欠けている場合のエラーを確認します
func TestLoadConfigMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JIRA_API_TOKEN", "")
	t.Setenv("GITLAB_PROJECT_ID", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JIRA_API_TOKEN")
	assert.Contains(t, err.Error(), "GITLAB_PROJECT_ID")
}

// YAMLファイルからのユーザーマッピング読み込みを確認します
func TestLoadConfigUserMap(t *testing.T) {
	setRequiredEnv(t)

	mapFile := filepath.Join(t.TempDir(), "user_map.yaml")
	content := "users:\n  Taro Yamada: taro\n  Jiro Tanaka: jiro\n"
	require.NoError(t, os.WriteFile(mapFile, []byte(content), 0644))
	t.Setenv("USER_MAP_FILE", mapFile)

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Len(t, config.UserMap, 2)
	assert.Equal(t, "taro", config.UserMap["Taro Yamada"])
	assert.Equal(t, "jiro", config.UserMap["Jiro Tanaka"])
}

// 不正なYAMLの場合はエラーになることを確認します
func TestLoadConfigUserMapInvalidYAML(t *testing.T) {
	setRequiredEnv(t)

	mapFile := filepath.Join(t.TempDir(), "user_map.yaml")
	require.NoError(t, os.WriteFile(mapFile, []byte("users: [broken"), 0644))
	t.Setenv("USER_MAP_FILE", mapFile)

	_, err := LoadConfig()
	assert.Error(t, err)
}
