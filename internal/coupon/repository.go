package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

type CouponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

const couponColumns = `id, code, discount, usage_limit, used_count, is_active, expiry_date`

func scanCoupon(row *sql.Row) (*domain.Coupon, error) {
	c := &domain.Coupon{}
	var expiry sql.NullTime
	if err := row.Scan(&c.ID, &c.Code, &c.Discount, &c.UsageLimit, &c.UsedCount, &c.IsActive, &expiry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, err
	}
	if expiry.Valid {
		c.ExpiryDate = &expiry.Time
	}
	return c, nil
}

// Create stores a new coupon. A coupon with the same code yields
// domain.ErrCouponExists.
func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	var expiry sql.NullTime
	if c.ExpiryDate != nil {
		expiry = sql.NullTime{Time: *c.ExpiryDate, Valid: true}
	}

	result, err := storage.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO coupons (id, code, discount, usage_limit, used_count, is_active, expiry_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (code) DO NOTHING
	`, c.ID, c.Code, c.Discount, c.UsageLimit, c.UsedCount, c.IsActive, expiry)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCouponExists, c.Code)
	}

	return nil
}

// FindActiveByCode looks up a coupon by code among active coupons only.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return scanCoupon(storage.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE code = $1 AND is_active
	`, code))
}

func (r *CouponRepository) GetByID(ctx context.Context, id string) (*domain.Coupon, error) {
	return scanCoupon(storage.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE id = $1
	`, id))
}

// IncrementUsage consumes one use of the coupon. It fails with
// domain.ErrCouponExpired once the usage limit has been reached.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id string) error {
	result, err := storage.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND is_active AND used_count < usage_limit
	`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCouponExpired, id)
	}

	return nil
}

// ReleaseUsage gives back one use of the coupon.
func (r *CouponRepository) ReleaseUsage(ctx context.Context, id string) error {
	_, err := storage.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count - 1, updated_at = NOW()
		WHERE id = $1 AND used_count > 0
	`, id)
	return err
}
