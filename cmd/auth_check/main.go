package main

import (
	"flag"
	"fmt"
	"os"

	"jiratogitlab/api"
	"jiratogitlab/config"
	"jiratogitlab/utils"
)

func main() {
	// ヘルプフラグの定義
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	utils.LogInfo("JIRA / GitLab 認証確認ツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	// JIRA認証チェック
	utils.LogInfo("JIRA APIの認証を確認しています...")
	jiraClient := api.NewJiraClient(cfg)
	if err := jiraClient.CheckAuth(); err != nil {
		utils.LogError("JIRA認証エラー: %v", err)
		utils.LogError("JIRAの認証情報を確認してください。")
		os.Exit(1)
	}
	utils.LogInfo("JIRA認証成功！ 接続先: %s", cfg.JiraURL)

	// GitLab認証チェック
	utils.LogInfo("GitLab APIの認証を確認しています...")
	gitlabClient := api.NewGitLabClient(cfg)
	if err := gitlabClient.CheckAuth(); err != nil {
		utils.LogError("GitLab認証エラー: %v", err)
		utils.LogError("GitLabのアクセストークンを確認してください。")
		os.Exit(1)
	}
	utils.LogInfo("GitLab認証成功！ 接続先: %s", cfg.GitLabURL)

	// 宛先プロジェクトの存在確認
	project, err := gitlabClient.GetProject()
	if err != nil {
		utils.LogError("GitLabプロジェクト取得エラー: %v", err)
		os.Exit(1)
	}
	utils.LogInfo("宛先プロジェクト: %s (%s)", project.Name, project.PathWithNamespace)
	utils.LogInfo("両APIの認証情報は正常です。")
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
JIRA / GitLab 認証確認ツール

使用方法:
  %s [オプション]

オプション:
  -help               このヘルプを表示する

環境変数:
  JIRA_URL            JIRA URL (必須)
  JIRA_EMAIL          JIRA APIアカウントのメールアドレス (必須)
  JIRA_API_TOKEN      JIRA APIトークン (必須)
  JIRA_PROJECT_KEY    移行元JIRAプロジェクトキー (必須)
  GITLAB_URL          GitLab URL (必須)
  GITLAB_TOKEN        GitLabパーソナルアクセストークン (必須)
  GITLAB_PROJECT_ID   宛先GitLabプロジェクトID (必須)

説明:
  このツールはJIRAとGitLabの両方の認証情報が正しく設定されているかを確認します。
  認証が成功すれば、移行ツールも正常に動作する可能性が高いです。
`, os.Args[0])
}
