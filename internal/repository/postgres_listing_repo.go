package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用した出品リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

const listingColumns = `id, seller_id, title, description, price, size, image_paths, status, created_at, updated_at`

func scanListingRows(rows *sql.Rows) ([]*model.Listing, error) {
	var listings []*model.Listing
	for rows.Next() {
		l := &model.Listing{}
		var status string
		err := rows.Scan(
			&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Price,
			&l.Size, pq.Array(&l.ImagePaths), &status, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		l.Status = model.ListingStatus(status)
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, nil
}

// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	l := &model.Listing{}
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id,
	).Scan(
		&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Price,
		&l.Size, pq.Array(&l.ImagePaths), &status, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing by ID: %w", err)
	}
	l.Status = model.ListingStatus(status)
	return l, nil
}

// FindByIDs は指定IDの出品をすべて返す。
// 解決できないIDがあってもエラーにはせず、件数の照合は呼び出し側で行う。
func (r *PostgresListingRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find listings by IDs: %w", err)
	}
	defer rows.Close()
	return scanListingRows(rows)
}

// Create は出品を作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO listings (id, seller_id, title, description, price, size, image_paths, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		listing.ID, listing.SellerID, listing.Title, listing.Description,
		listing.Price, listing.Size, pq.Array(listing.ImagePaths),
		string(listing.Status), listing.CreatedAt, listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// Update は出品の編集可能フィールドを更新する。
func (r *PostgresListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE listings
		 SET title = $2, description = $3, price = $4, size = $5, image_paths = $6, updated_at = $7
		 WHERE id = $1`,
		listing.ID, listing.Title, listing.Description, listing.Price,
		listing.Size, pq.Array(listing.ImagePaths), listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("listing not found: %s", listing.ID)
	}
	return nil
}

// Delete は出品を削除する。関連するカート・いいね等はCASCADE削除される。
func (r *PostgresListingRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("listing not found: %s", id)
	}
	return nil
}

// ListBySeller は指定出品者の出品一覧を新しい順で返す。
func (r *PostgresListingRepo) ListBySeller(ctx context.Context, sellerID string) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE seller_id = $1 ORDER BY created_at DESC`,
		sellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings by seller: %w", err)
	}
	defer rows.Close()
	return scanListingRows(rows)
}

// ListFeed はスワイプフィード用にSTAGING状態の出品を返す。
// 自分の出品と、既にいいね・興味なし・カート追加済みの出品は除外する。
func (r *PostgresListingRepo) ListFeed(ctx context.Context, userID string, limit int) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings l
		 WHERE l.status = 'STAGING'
		   AND l.seller_id <> $1
		   AND NOT EXISTS (SELECT 1 FROM likes    WHERE user_id = $1 AND listing_id = l.id)
		   AND NOT EXISTS (SELECT 1 FROM dislikes WHERE user_id = $1 AND listing_id = l.id)
		   AND NOT EXISTS (SELECT 1 FROM cart_items WHERE user_id = $1 AND listing_id = l.id)
		 ORDER BY l.created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	defer rows.Close()
	return scanListingRows(rows)
}

// ClaimForCheckout はSTAGING状態の行のみをCHECKOUTに遷移させる。
// 条件付きUPDATEにより、並行チェックアウトによる二重販売を防ぐ。
// 実際に遷移できた出品IDを返す。
func (r *PostgresListingRepo) ClaimForCheckout(ctx context.Context, ids []string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE listings SET status = 'CHECKOUT', updated_at = now()
		 WHERE id = ANY($1) AND status = 'STAGING'
		 RETURNING id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim listings for checkout: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// ReleaseFromCheckout はCHECKOUT状態の行のみをSTAGINGに戻す。
// CHECKOUT以外の状態の行には触れない。実際に戻した出品IDを返す。
func (r *PostgresListingRepo) ReleaseFromCheckout(ctx context.Context, ids []string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE listings SET status = 'STAGING', updated_at = now()
		 WHERE id = ANY($1) AND status = 'CHECKOUT'
		 RETURNING id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to release listings from checkout: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// MarkSold は指定出品をSOLDに遷移させる。決済成功Webhookから呼ばれる。
// 既にSOLDの行を再度SOLDにしても差分はないため冪等。
func (r *PostgresListingRepo) MarkSold(ctx context.Context, ids []string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = 'SOLD', updated_at = now() WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to mark listings sold: %w", err)
	}
	return nil
}

// stuckInCheckoutQuery は回収対象の出品を選ぶクエリ。
// 決済がSUCCEEDEDに達した注文に属する出品は、売却確定Webhookの到着待ちで
// あって滞留ではないため対象から除外する。
const stuckInCheckoutQuery = `
	SELECT l.id FROM listings l
	WHERE l.status = 'CHECKOUT'
	  AND l.updated_at < now() - $1::interval
	  AND NOT EXISTS (
	      SELECT 1 FROM order_lines ol
	      JOIN sub_orders so ON so.id = ol.sub_order_id
	      JOIN orders o ON o.id = so.order_id
	      WHERE ol.listing_id = l.id AND o.payment_status = 'SUCCEEDED'
	  )`

// ListStuckInCheckout は閾値より長くCHECKOUTに滞留している出品IDを返す。
// 放置されたチェックアウトの自動回収ジョブから使用する。
func (r *PostgresListingRepo) ListStuckInCheckout(ctx context.Context, olderThan time.Duration) ([]string, error) {
	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	rows, err := r.db.QueryContext(ctx, stuckInCheckoutQuery, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck listings: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate IDs: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)
