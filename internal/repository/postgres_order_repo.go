package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// Create はOrderと配下のSubOrder・OrderLineを単一トランザクションで作成する。
// 途中で失敗した場合は全体がロールバックされ、部分的な注文は残らない。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, purchaser_id, total, payment_intent_id, payment_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.ID, order.PurchaserID, order.Total, order.PaymentIntentID,
		string(order.PaymentStatus), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, sub := range order.SubOrders {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sub_orders (id, order_id, seller_id, shipping_cost, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			sub.ID, sub.OrderID, sub.SellerID, sub.ShippingCost, sub.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sub order: %w", err)
		}

		for _, line := range sub.Lines {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_lines (id, sub_order_id, listing_id, price, created_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				line.ID, line.SubOrderID, line.ListingID, line.Price, line.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert order line: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は注文をSubOrder・OrderLine込みで取得する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	order := &model.Order{}
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, purchaser_id, total, payment_intent_id, payment_status, created_at, updated_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.PurchaserID, &order.Total, &order.PaymentIntentID,
		&status, &order.CreatedAt, &order.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}
	order.PaymentStatus = model.PaymentStatus(status)

	if err := r.loadSubOrders(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// loadSubOrders は注文のSubOrderとOrderLineを読み込む。
func (r *PostgresOrderRepo) loadSubOrders(ctx context.Context, order *model.Order) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, seller_id, shipping_cost, created_at
		 FROM sub_orders WHERE order_id = $1 ORDER BY created_at`, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load sub orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sub := model.SubOrder{}
		if err := rows.Scan(&sub.ID, &sub.OrderID, &sub.SellerID, &sub.ShippingCost, &sub.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan sub order: %w", err)
		}
		order.SubOrders = append(order.SubOrders, sub)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate sub orders: %w", err)
	}

	for i := range order.SubOrders {
		lineRows, err := r.db.QueryContext(ctx,
			`SELECT id, sub_order_id, listing_id, price, created_at
			 FROM order_lines WHERE sub_order_id = $1 ORDER BY created_at`,
			order.SubOrders[i].ID)
		if err != nil {
			return fmt.Errorf("failed to load order lines: %w", err)
		}
		for lineRows.Next() {
			line := model.OrderLine{}
			if err := lineRows.Scan(&line.ID, &line.SubOrderID, &line.ListingID, &line.Price, &line.CreatedAt); err != nil {
				lineRows.Close()
				return fmt.Errorf("failed to scan order line: %w", err)
			}
			order.SubOrders[i].Lines = append(order.SubOrders[i].Lines, line)
		}
		if err := lineRows.Err(); err != nil {
			lineRows.Close()
			return fmt.Errorf("failed to iterate order lines: %w", err)
		}
		lineRows.Close()
	}

	return nil
}

// ListByPurchaser は購入者の注文一覧を新しい順で返す（SubOrderなしの浅い取得）。
func (r *PostgresOrderRepo) ListByPurchaser(ctx context.Context, purchaserID string) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, purchaser_id, total, payment_intent_id, payment_status, created_at, updated_at
		 FROM orders WHERE purchaser_id = $1 ORDER BY created_at DESC`, purchaserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order := &model.Order{}
		var status string
		if err := rows.Scan(&order.ID, &order.PurchaserID, &order.Total,
			&order.PaymentIntentID, &status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.PaymentStatus = model.PaymentStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// SetPaymentIntent はPaymentIntent作成後にそのIDと決済状態を注文へ記録する。
func (r *PostgresOrderRepo) SetPaymentIntent(ctx context.Context, orderID, paymentIntentID string, status model.PaymentStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_intent_id = $2, payment_status = $3, updated_at = now() WHERE id = $1`,
		orderID, paymentIntentID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to set payment intent: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}
	return nil
}

// UpdateStatusByPaymentIntent はPaymentIntentIDで注文を特定して決済状態を更新する。
// 同じ値での再更新は差分を生まないため、Webhookの重複配信に対して冪等。
// 該当注文がない場合は空文字を返す。
func (r *PostgresOrderRepo) UpdateStatusByPaymentIntent(ctx context.Context, paymentIntentID string, status model.PaymentStatus) (string, error) {
	var orderID string
	err := r.db.QueryRowContext(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = now()
		 WHERE payment_intent_id = $1
		 RETURNING id`,
		paymentIntentID, string(status),
	).Scan(&orderID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to update order status by payment intent: %w", err)
	}
	return orderID, nil
}

// ListingIDsByPaymentIntent は注文に含まれる全出品IDを返す。
func (r *PostgresOrderRepo) ListingIDsByPaymentIntent(ctx context.Context, paymentIntentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ol.listing_id
		 FROM order_lines ol
		 JOIN sub_orders so ON so.id = ol.sub_order_id
		 JOIN orders o ON o.id = so.order_id
		 WHERE o.payment_intent_id = $1`,
		paymentIntentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list listing IDs by payment intent: %w", err)
	}
	defer rows.Close()
	return collectIDs(rows)
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
