// Package cleanup はWebhookイベントログの自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過したイベント行を日次バッチで削除する。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/thriftswipe/internal/repository"
)

// CleanupJob は保持期間を超過したWebhookイベントの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	eventRepo     repository.StripeEventRepository
	logger        *slog.Logger
	RetentionDays int // イベントログの保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(eventRepo repository.StripeEventRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		eventRepo:     eventRepo,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は保持期間を超過したイベント行を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	retention := time.Duration(j.RetentionDays) * 24 * time.Hour

	deletedCount, err := j.eventRepo.DeleteOlderThan(ctx, retention)
	if err != nil {
		j.logger.Error("イベントログクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return err
	}

	duration := time.Since(start)
	j.logger.Info("イベントログクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("イベントログクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("イベントログクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
