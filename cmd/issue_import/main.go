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

	utils.LogInfo("GitLab イシューインポートツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	if *assumeYes {
		cfg.AssumeYes = true
	}

	// インポートの実行（クリーンアップなし）
	jiraClient := api.NewJiraClient(cfg)
	gitlabClient := api.NewGitLabClient(cfg)
	importService := services.NewImportService(cfg, jiraClient, gitlabClient)

	if err := importService.Run(); err != nil {
		utils.LogError("イシューインポートエラー: %v", err)
		os.Exit(1)
	}

	// 処理時間の表示
	elapsed := time.Since(startTime)
	utils.LogInfo("イシューのインポートが完了しました。処理時間: %s", elapsed)
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
GitLab イシューインポートツール

使用方法:
  %s [オプション]

オプション:
  -yes                確認プロンプトをすべてyesとして扱う
  -help               このヘルプを表示する

環境変数:
  JIRA_URL            JIRA URL (必須)
  JIRA_EMAIL          JIRA APIアカウントのメールアドレス (必須)
  JIRA_API_TOKEN      JIRA APIトークン (必須)
  JIRA_PROJECT_KEY    移行元JIRAプロジェクトキー (必須)
  GITLAB_URL          GitLab URL (必須)
  GITLAB_TOKEN        GitLabパーソナルアクセストークン (必須)
  GITLAB_PROJECT_ID   宛先GitLabプロジェクトID (必須)
  USER_MAP_FILE       ユーザーマッピングYAMLファイル (デフォルト: user_map.yaml)

説明:
  このツールはJIRAプロジェクトの全イシューを読み取り、
  対応するGitLabイシュー・ノート・マイルストーン・リンクを作成します。
  宛先のクリーンアップは行いません（all_in_one の -delete-existing を使用）。

  注意: 再実行すると同じイシューが重複して作成されます。
  重複排除の仕組みはありません。
`, os.Args[0])
}
