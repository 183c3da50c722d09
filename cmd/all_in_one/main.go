package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"jiratogitlab/api"
	"jiratogitlab/config"
	"jiratogitlab/services"
	"jiratogitlab/utils"
)

func main() {
	// コマンドラインフラグの定義
	deleteExisting := flag.Bool("delete-existing", false, "インポート前に宛先の全イシューを削除する")
	assumeYes := flag.Bool("yes", false, "確認プロンプトをすべてyesとして扱う")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	// 開始時間の記録
	startTime := time.Now()

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	// フラグによる設定の上書き
	if *deleteExisting {
		cfg.DeleteExistingIssues = true
	}
	if *assumeYes {
		cfg.AssumeYes = true
	}

	utils.LogInfo("JIRA → GitLab 移行ツール (v1.0.0)")
	utils.LogInfo("JIRAプロジェクト: %s, GitLabプロジェクトID: %d", cfg.JiraProjectKey, cfg.GitLabProjectID)

	// 必要なサービスの初期化
	jiraClient := api.NewJiraClient(cfg)
	gitlabClient := api.NewGitLabClient(cfg)

	// 要求された場合のみ宛先のクリーンアップを実行
	if cfg.DeleteExistingIssues {
		utils.LogInfo("宛先プロジェクトのクリーンアップを開始します")
		cleanupService := services.NewCleanupService(cfg, gitlabClient)
		if err := cleanupService.Run(); err != nil {
			utils.LogError("クリーンアップに失敗しました: %v", err)
			os.Exit(1)
		}
	}

	// インポートの実行
	importService := services.NewImportService(cfg, jiraClient, gitlabClient)
	if err := importService.Run(); err != nil {
		utils.LogError("移行処理に失敗しました: %v", err)
		os.Exit(1)
	}

	// 合計実行時間の表示
	elapsed := time.Since(startTime)
	utils.LogInfo("移行処理が完了しました。合計実行時間: %s", elapsed)
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
JIRA → GitLab 移行ツール

使用方法:
  %s [オプション]

オプション:
  -delete-existing    インポート前に宛先の全イシューを削除する（要確認）
  -yes                確認プロンプトをすべてyesとして扱う
  -help               このヘルプを表示する

環境変数:
  JIRA_URL            JIRA URL (必須)
  JIRA_EMAIL          JIRA APIアカウントのメールアドレス (必須)
  JIRA_API_TOKEN      JIRA APIトークン (必須)
  JIRA_PROJECT_KEY    移行元JIRAプロジェクトキー (必須)
  JIRA_MILESTONE_FIELD  スプリントを保持するカスタムフィールドID (デフォルト: customfield_10000)
  JIRA_INCIDENT_TYPES   GitLabでincident扱いにするJIRAタイプ (デフォルト: Bug,bug)
  GITLAB_URL          GitLab URL (必須)
  GITLAB_TOKEN        GitLabパーソナルアクセストークン (必須)
  GITLAB_PROJECT_ID   宛先GitLabプロジェクトID (必須)
  GITLAB_DEFAULT_USER 未マップユーザーの代わりに使うログイン名 (デフォルト: root)
  GITLAB_SUDO         SUDOヘッダーで作者を偽装する (デフォルト: true)
  GITLAB_PREMIUM      blocks等のリンク種別を使用する (デフォルト: false)
  USER_MAP_FILE       ユーザーマッピングYAMLファイル (デフォルト: user_map.yaml)
  DELETE_EXISTING_ISSUES  インポート前に宛先の全イシューを削除する (デフォルト: false)
  ASSUME_YES          確認プロンプトをスキップする (デフォルト: false)

例:
  # すべての処理を実行
  %s

  # 宛先をクリーンアップしてからインポート
  %s -delete-existing

  # 確認なしで実行（CI等）
  %s -yes
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}
