package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, user_id, user_email, cart_id, coupon_id, total_price, address, phone,
	payment_method, status, arrives_at, payment_intent,
	paid_at, canceled_at, canceled_by, delivered_at, delivered_by, refunded_at, refunded_by,
	created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	var (
		o             domain.Order
		couponID      sql.NullString
		paymentIntent sql.NullString
		paidAt        sql.NullTime
		canceledAt    sql.NullTime
		canceledBy    sql.NullString
		deliveredAt   sql.NullTime
		deliveredBy   sql.NullString
		refundedAt    sql.NullTime
		refundedBy    sql.NullString
	)

	err := row.Scan(
		&o.ID, &o.UserID, &o.UserEmail, &o.CartID, &couponID, &o.TotalPrice, &o.Address, &o.Phone,
		&o.PaymentMethod, &o.Status, &o.ArrivesAt, &paymentIntent,
		&paidAt, &canceledAt, &canceledBy, &deliveredAt, &deliveredBy, &refundedAt, &refundedBy,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.CouponID = couponID.String
	o.PaymentIntent = paymentIntent.String
	o.Changes = domain.OrderChanges{
		PaidAt:      timePtr(paidAt),
		CanceledAt:  timePtr(canceledAt),
		CanceledBy:  canceledBy.String,
		DeliveredAt: timePtr(deliveredAt),
		DeliveredBy: deliveredBy.String,
		RefundedAt:  timePtr(refundedAt),
		RefundedBy:  refundedBy.String,
	}
	o.Items = []domain.OrderItem{}

	return &o, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	conn := storage.Conn(ctx, r.db)

	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	_, err := conn.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, user_email, cart_id, coupon_id, total_price, address, phone,
			payment_method, status, arrives_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`, order.ID, order.UserID, order.UserEmail, order.CartID, nullString(order.CouponID), order.TotalPrice,
		order.Address, order.Phone, order.PaymentMethod, order.Status, order.ArrivesAt, order.CreatedAt)
	if err != nil {
		return err
	}
	order.UpdatedAt = order.CreatedAt

	for _, item := range order.Items {
		_, err = conn.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
		`, order.ID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.FindByIDWithStatus(ctx, id)
}

// FindByIDWithStatus loads an order whose status is one of statuses. With no
// statuses any status matches. A miss is domain.ErrOrderNotFound.
func (r *OrderRepository) FindByIDWithStatus(ctx context.Context, id string, statuses ...domain.OrderStatus) (*domain.Order, error) {
	conn := storage.Conn(ctx, r.db)

	var row *sql.Row
	if len(statuses) == 0 {
		row = conn.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	} else {
		row = conn.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND status = ANY($2)`,
			id, pq.Array(statusStrings(statuses)))
	}

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	if err := r.loadItems(ctx, conn, map[string]*domain.Order{order.ID: order}); err != nil {
		return nil, err
	}

	return order, nil
}

// Transition moves an order to t.To only while its current status is in
// t.From. The check and the write are one statement, so concurrent requests
// cannot both succeed.
func (r *OrderRepository) Transition(ctx context.Context, id string, t domain.Transition) (*domain.Order, error) {
	conn := storage.Conn(ctx, r.db)

	set := `status = $2, updated_at = $3`
	args := []any{id, t.To, t.At, pq.Array(statusStrings(t.From))}

	switch t.To {
	case domain.OrderStatusPaid:
		set += `, paid_at = $3, payment_intent = $5`
		args = append(args, nullString(t.PaymentIntent))
	case domain.OrderStatusCancelled:
		set += `, canceled_at = $3, canceled_by = $5`
		args = append(args, nullString(t.Actor))
	case domain.OrderStatusDelivered:
		set += `, delivered_at = $3, delivered_by = $5`
		args = append(args, nullString(t.Actor))
	case domain.OrderStatusRefunded:
		set += `, refunded_at = $3, refunded_by = $5`
		args = append(args, nullString(t.Actor))
	}

	result, err := conn.ExecContext(ctx, `UPDATE orders SET `+set+` WHERE id = $1 AND status = ANY($4)`, args...)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: order %s is %s, cannot move to %s", domain.ErrInvalidTransition, id, current.Status, t.To)
	}

	return r.GetByID(ctx, id)
}

// ListByUser returns the user's orders newest first, items included.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	conn := storage.Conn(ctx, r.db)

	rows, err := conn.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.loadItems(ctx, conn, orderMap); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, conn storage.Executor, orderMap map[string]*domain.Order) error {
	ids := make([]string, 0, len(orderMap))
	for id := range orderMap {
		ids = append(ids, id)
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, product_id
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
