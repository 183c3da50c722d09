package services

import (
	"fmt"
	"time"

	"jiratogitlab/api"
	"jiratogitlab/config"
	"jiratogitlab/utils"
)

// CleanupService は宛先GitLabプロジェクトの既存イシューを全削除します
// この操作は取り消せないため、必ず操作者の確認を取ってから実行します
type CleanupService struct {
	config *config.Config
	gitlab *api.GitLabClient
}

// NewCleanupService は新しいクリーンアップサービスを作成します
func NewCleanupService(cfg *config.Config, gitlabClient *api.GitLabClient) *CleanupService {
	return &CleanupService{
		config: cfg,
		gitlab: gitlabClient,
	}
}

// Run は宛先プロジェクトの全イシューと全マイルストーンを削除します
// 途中で失敗した場合、削除済みのイシューはそのまま残ります（ロールバックなし）
func (c *CleanupService) Run() error {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "クリーンアップ")

	project, err := c.gitlab.GetProject()
	if err != nil {
		return fmt.Errorf("GitLabプロジェクト取得エラー: %w", err)
	}

	issues, err := c.gitlab.ListIssues()
	if err != nil {
		return fmt.Errorf("イシュー一覧取得エラー: %w", err)
	}

	if len(issues) == 0 {
		utils.LogInfo("GitLabプロジェクト %s にイシューはありません", project.Name)
		return nil
	}

	if !c.config.AssumeYes {
		if !utils.Confirm(fmt.Sprintf("GitLabプロジェクト %s の %d 件のイシューを削除します。続行しますか?",
			project.Name, len(issues))) {
			utils.LogInfo("クリーンアップを中断しました")
			return nil
		}
	}

	for _, issue := range issues {
		if err := c.gitlab.DeleteIssue(issue.IID); err != nil {
			return fmt.Errorf("イシュー削除エラー (iid=%d): %w", issue.IID, err)
		}
	}
	utils.LogInfo("イシューを %d 件削除しました", len(issues))

	milestones, err := c.gitlab.ListMilestones("")
	if err != nil {
		return fmt.Errorf("マイルストーン一覧取得エラー: %w", err)
	}

	for _, milestone := range milestones {
		if err := c.gitlab.DeleteMilestone(milestone.ID); err != nil {
			return fmt.Errorf("マイルストーン削除エラー (id=%d): %w", milestone.ID, err)
		}
	}
	if len(milestones) > 0 {
		utils.LogInfo("マイルストーンを %d 件削除しました", len(milestones))
	}

	return nil
}
