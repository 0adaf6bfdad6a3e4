// Package recovery は決済未完了のまま滞留した出品の回収ジョブを提供する。
// チェックアウト開始後にクライアントが離脱し、Webhookも失敗通知も届かない
// 場合に、CHECKOUT状態の出品をフィードに戻す。
package recovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/thriftswipe/internal/metrics"
	"github.com/hitoshi/thriftswipe/internal/repository"
)

// RecoveryJob はタイムアウトした出品をSTAGINGに戻すジョブ。
// 決済がSUCCEEDEDに達した注文の出品は回収対象に含まれず、
// 条件付き更新で戻すため、ジョブ実行中に決済が完了した出品にも影響しない。
type RecoveryJob struct {
	listingRepo repository.ListingRepository
	logger      *slog.Logger
	collector   metrics.MetricsCollector
	Timeout     time.Duration // CHECKOUT滞留の許容時間（デフォルト: 30分）
}

// NewRecoveryJob は新しいRecoveryJobを生成する。
// デフォルトのタイムアウトは30分。
func NewRecoveryJob(listingRepo repository.ListingRepository, logger *slog.Logger, collector metrics.MetricsCollector) *RecoveryJob {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &RecoveryJob{
		listingRepo: listingRepo,
		logger:      logger,
		collector:   collector,
		Timeout:     30 * time.Minute,
	}
}

// Run はタイムアウトを超えてCHECKOUTに滞留している出品を回収する。
// 冪等: 対象がない場合でもエラーにならない。
func (j *RecoveryJob) Run(ctx context.Context) error {
	start := time.Now()

	stuck, err := j.listingRepo.ListStuckInCheckout(ctx, j.Timeout)
	if err != nil {
		j.logger.Error("滞留出品の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	if len(stuck) == 0 {
		return nil
	}

	released, err := j.listingRepo.ReleaseFromCheckout(ctx, stuck)
	if err != nil {
		j.logger.Error("滞留出品の回収に失敗しました",
			slog.Int("stuck_count", len(stuck)),
			slog.String("error", err.Error()),
		)
		return err
	}

	j.collector.RecordListingsRecovered(len(released))

	duration := time.Since(start)
	j.logger.Info("滞留出品の回収が完了しました",
		slog.Int("recovered_count", len(released)),
		slog.Duration("timeout", j.Timeout),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *RecoveryJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("回収ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("timeout", j.Timeout),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("回収ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("回収ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("回収ジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
