package main

import (
	"flag"
	"fmt"
	"os"

	"jiratogitlab/api"
	"jiratogitlab/config"
	"jiratogitlab/services"
	"jiratogitlab/utils"
)

func main() {
	// コマンドラインフラグの定義
	assumeYes := flag.Bool("yes", false, "確認プロンプトをスキップする")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	utils.LogInfo("GitLab プロジェクトクリーンアップツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	if *assumeYes {
		cfg.AssumeYes = true
	}

	// GitLab認証チェック
	gitlabClient := api.NewGitLabClient(cfg)
	if err := gitlabClient.CheckAuth(); err != nil {
		utils.LogError("GitLab認証エラー: %v", err)
		os.Exit(1)
	}

	// クリーンアップの実行
	cleanupService := services.NewCleanupService(cfg, gitlabClient)
	if err := cleanupService.Run(); err != nil {
		utils.LogError("クリーンアップに失敗しました: %v", err)
		os.Exit(1)
	}

	utils.LogInfo("クリーンアップが完了しました")
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
GitLab プロジェクトクリーンアップツール

使用方法:
  %s [オプション]

オプション:
  -yes                確認プロンプトをスキップする
  -help               このヘルプを表示する

環境変数:
  GITLAB_URL          GitLab URL (必須)
  GITLAB_TOKEN        GitLabパーソナルアクセストークン (必須)
  GITLAB_PROJECT_ID   宛先GitLabプロジェクトID (必須)

説明:
  このツールは宛先GitLabプロジェクトの全イシューと全マイルストーンを削除します。

  警告: この操作は取り消せません。削除には確認が必要です。
  途中で失敗した場合、削除済みのイシューはそのまま残ります。
`, os.Args[0])
}
