package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// PostgresStripeEventRepo は決済Webhookイベントログのリポジトリ。
type PostgresStripeEventRepo struct {
	db *sql.DB
}

// NewPostgresStripeEventRepo はPostgresStripeEventRepoを生成する。
func NewPostgresStripeEventRepo(db *sql.DB) *PostgresStripeEventRepo {
	return &PostgresStripeEventRepo{db: db}
}

// Insert はイベントを追記する。provider_event_idの一意制約により
// 同一イベントの重複配信はErrDuplicateとして検出される。
func (r *PostgresStripeEventRepo) Insert(ctx context.Context, event *model.StripeEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stripe_events (id, provider_event_id, event_type, payload, received_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.ProviderEventID, event.EventType, event.Payload, event.ReceivedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert stripe event: %w", err)
	}
	return nil
}

// IsProcessed は指定イベントの状態反映が完了済みかどうかを返す。
// 未記録のイベントは未処理として扱う。
func (r *PostgresStripeEventRepo) IsProcessed(ctx context.Context, providerEventID string) (bool, error) {
	var processed bool
	err := r.db.QueryRowContext(ctx,
		`SELECT processed_at IS NOT NULL FROM stripe_events WHERE provider_event_id = $1`,
		providerEventID,
	).Scan(&processed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check stripe event: %w", err)
	}
	return processed, nil
}

// MarkProcessed は指定イベントの状態反映完了を記録する。
func (r *PostgresStripeEventRepo) MarkProcessed(ctx context.Context, providerEventID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE stripe_events SET processed_at = now() WHERE provider_event_id = $1`,
		providerEventID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark stripe event processed: %w", err)
	}
	return nil
}

// DeleteOlderThan は保持期間を超過したイベントを削除し、削除件数を返す。
// 日次クリーンアップジョブから使用する。冪等。
func (r *PostgresStripeEventRepo) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	interval := fmt.Sprintf("%d seconds", int(retention.Seconds()))
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM stripe_events WHERE received_at < now() - $1::interval`,
		interval,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old stripe events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ StripeEventRepository = (*PostgresStripeEventRepo)(nil)
