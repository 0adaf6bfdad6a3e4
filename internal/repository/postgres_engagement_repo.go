package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// PostgresEngagementRepo はカート・いいね・興味なし・保存の結合行リポジトリ。
// 4テーブルはすべて同一スキーマ（id, user_id, listing_id, created_at +
// (user_id, listing_id)一意制約）のため、1つの実装にまとめている。
type PostgresEngagementRepo struct {
	db *sql.DB
}

// NewPostgresEngagementRepo はPostgresEngagementRepoを生成する。
func NewPostgresEngagementRepo(db *sql.DB) *PostgresEngagementRepo {
	return &PostgresEngagementRepo{db: db}
}

// insertJoinRow は結合行を挿入する。一意制約違反はErrDuplicateを返す。
func (r *PostgresEngagementRepo) insertJoinRow(ctx context.Context, table, userID, listingID string) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, user_id, listing_id, created_at) VALUES ($1, $2, $3, $4)`, table)
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, listingID, time.Now())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// deleteJoinRow は結合行を削除し、行が存在したかどうかを返す。
func (r *PostgresEngagementRepo) deleteJoinRow(ctx context.Context, table, userID, listingID string) (bool, error) {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = $1 AND listing_id = $2`, table)
	result, err := r.db.ExecContext(ctx, query, userID, listingID)
	if err != nil {
		return false, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// listJoinedListings は結合行経由でユーザーの出品一覧を返す。
func (r *PostgresEngagementRepo) listJoinedListings(ctx context.Context, table, userID string) ([]*model.Listing, error) {
	query := fmt.Sprintf(
		`SELECT l.id, l.seller_id, l.title, l.description, l.price, l.size, l.image_paths, l.status, l.created_at, l.updated_at
		 FROM %s j JOIN listings l ON l.id = j.listing_id
		 WHERE j.user_id = $1
		 ORDER BY j.created_at DESC`, table)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings via %s: %w", table, err)
	}
	defer rows.Close()
	return scanListingRows(rows)
}

// AddCartItem は出品をカートに追加する。重複はErrDuplicate。
func (r *PostgresEngagementRepo) AddCartItem(ctx context.Context, userID, listingID string) error {
	return r.insertJoinRow(ctx, "cart_items", userID, listingID)
}

// RemoveCartItem はカートから出品を外す。行が存在したかどうかを返す。
func (r *PostgresEngagementRepo) RemoveCartItem(ctx context.Context, userID, listingID string) (bool, error) {
	return r.deleteJoinRow(ctx, "cart_items", userID, listingID)
}

// ListCartListings はカート内の出品一覧を返す。
func (r *PostgresEngagementRepo) ListCartListings(ctx context.Context, userID string) ([]*model.Listing, error) {
	return r.listJoinedListings(ctx, "cart_items", userID)
}

// ListCartListingIDs はカート内の出品IDのみを返す。チェックアウトで使用する。
func (r *PostgresEngagementRepo) ListCartListingIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT listing_id FROM cart_items WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart listing IDs: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ClearCartByListingIDs は指定出品を全ユーザーのカートから取り除く。
// 決済成功時に売却済み出品を他ユーザーのカートからも消すために使用する。
func (r *PostgresEngagementRepo) ClearCartByListingIDs(ctx context.Context, listingIDs []string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE listing_id = ANY($1)`,
		pq.Array(listingIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	return nil
}

// AddLike はいいねを記録する。重複はErrDuplicate。
func (r *PostgresEngagementRepo) AddLike(ctx context.Context, userID, listingID string) error {
	return r.insertJoinRow(ctx, "likes", userID, listingID)
}

// RemoveLike はいいねを解除する。行が存在したかどうかを返す。
func (r *PostgresEngagementRepo) RemoveLike(ctx context.Context, userID, listingID string) (bool, error) {
	return r.deleteJoinRow(ctx, "likes", userID, listingID)
}

// ListLikedListings はいいねした出品一覧を返す。
func (r *PostgresEngagementRepo) ListLikedListings(ctx context.Context, userID string) ([]*model.Listing, error) {
	return r.listJoinedListings(ctx, "likes", userID)
}

// AddDislike は興味なしを記録する。重複はErrDuplicate。
func (r *PostgresEngagementRepo) AddDislike(ctx context.Context, userID, listingID string) error {
	return r.insertJoinRow(ctx, "dislikes", userID, listingID)
}

// RemoveDislike は興味なしを解除する。行が存在したかどうかを返す。
func (r *PostgresEngagementRepo) RemoveDislike(ctx context.Context, userID, listingID string) (bool, error) {
	return r.deleteJoinRow(ctx, "dislikes", userID, listingID)
}

// AddSavedItem はあとで見る保存を記録する。重複はErrDuplicate。
func (r *PostgresEngagementRepo) AddSavedItem(ctx context.Context, userID, listingID string) error {
	return r.insertJoinRow(ctx, "saved_items", userID, listingID)
}

// RemoveSavedItem は保存を解除する。行が存在したかどうかを返す。
func (r *PostgresEngagementRepo) RemoveSavedItem(ctx context.Context, userID, listingID string) (bool, error) {
	return r.deleteJoinRow(ctx, "saved_items", userID, listingID)
}

// ListSavedListings は保存した出品一覧を返す。
func (r *PostgresEngagementRepo) ListSavedListings(ctx context.Context, userID string) ([]*model.Listing, error) {
	return r.listJoinedListings(ctx, "saved_items", userID)
}

// compile-time interface check
var _ EngagementRepository = (*PostgresEngagementRepo)(nil)
