package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// FindByOwner returns the active cart of a user, or domain.ErrCartNotFound.
func (r *CartRepository) FindByOwner(ctx context.Context, ownerID string) (*domain.Cart, error) {
	conn := storage.Conn(ctx, r.db)

	c := &domain.Cart{}
	err := conn.QueryRowContext(ctx, `
		SELECT id, owner_id
		FROM carts
		WHERE owner_id = $1
	`, ownerID).Scan(&c.ID, &c.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT product_id, quantity, final_price
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY position
	`, c.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	c.Lines = []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.FinalPrice); err != nil {
			return nil, err
		}
		c.Lines = append(c.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return c, nil
}

// ReplaceLines overwrites the product list of the owner's cart, creating the
// cart when the owner has none.
func (r *CartRepository) ReplaceLines(ctx context.Context, ownerID string, lines []domain.CartLine) (*domain.Cart, error) {
	conn := storage.Conn(ctx, r.db)

	var cartID string
	err := conn.QueryRowContext(ctx, `
		INSERT INTO carts (id, owner_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (owner_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, uuid.New().String(), ownerID).Scan(&cartID)
	if err != nil {
		return nil, err
	}

	if _, err := conn.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return nil, err
	}

	for i, line := range lines {
		_, err = conn.ExecContext(ctx, `
			INSERT INTO cart_lines (cart_id, product_id, quantity, final_price, position)
			VALUES ($1, $2, $3, $4, $5)
		`, cartID, line.ProductID, line.Quantity, line.FinalPrice, i)
		if err != nil {
			return nil, err
		}
	}

	return &domain.Cart{ID: cartID, OwnerID: ownerID, Lines: lines}, nil
}

// AddLine appends a product to the owner's cart, creating the cart when the
// owner has none. A product already in the cart yields domain.ErrCartLineExists.
func (r *CartRepository) AddLine(ctx context.Context, ownerID string, line domain.CartLine) (*domain.Cart, error) {
	conn := storage.Conn(ctx, r.db)

	var cartID string
	err := conn.QueryRowContext(ctx, `
		INSERT INTO carts (id, owner_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (owner_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, uuid.New().String(), ownerID).Scan(&cartID)
	if err != nil {
		return nil, err
	}

	result, err := conn.ExecContext(ctx, `
		INSERT INTO cart_lines (cart_id, product_id, quantity, final_price, position)
		SELECT $1::text, $2::text, $3::int, $4::numeric, COALESCE(MAX(position) + 1, 0)
		FROM cart_lines
		WHERE cart_id = $1
		ON CONFLICT (cart_id, product_id) DO NOTHING
	`, cartID, line.ProductID, line.Quantity, line.FinalPrice)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrCartLineExists, line.ProductID)
	}

	return r.FindByOwner(ctx, ownerID)
}

// UpdateLine sets the quantity and unit price of a product already in the
// owner's cart.
func (r *CartRepository) UpdateLine(ctx context.Context, ownerID string, line domain.CartLine) (*domain.Cart, error) {
	c, err := r.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result, err := storage.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE cart_lines
		SET quantity = $3, final_price = $4
		WHERE cart_id = $1 AND product_id = $2
	`, c.ID, line.ProductID, line.Quantity, line.FinalPrice)
	if err != nil {
		return nil, err
	}

	if err := r.requireLine(result, line.ProductID); err != nil {
		return nil, err
	}

	return r.touch(ctx, c.ID, ownerID)
}

// RemoveLine drops one product from the owner's cart.
func (r *CartRepository) RemoveLine(ctx context.Context, ownerID, productID string) (*domain.Cart, error) {
	c, err := r.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result, err := storage.Conn(ctx, r.db).ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE cart_id = $1 AND product_id = $2
	`, c.ID, productID)
	if err != nil {
		return nil, err
	}

	if err := r.requireLine(result, productID); err != nil {
		return nil, err
	}

	return r.touch(ctx, c.ID, ownerID)
}

// RemoveProducts drops the given products from a cart and leaves any other
// line in place. The cart row itself is kept.
func (r *CartRepository) RemoveProducts(ctx context.Context, cartID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	conn := storage.Conn(ctx, r.db)

	_, err := conn.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE cart_id = $1 AND product_id = ANY($2)
	`, cartID, pq.Array(productIDs))
	if err != nil {
		return err
	}

	_, err = conn.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID)
	return err
}

func (r *CartRepository) requireLine(result sql.Result, productID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCartLineNotFound, productID)
	}

	return nil
}

func (r *CartRepository) touch(ctx context.Context, cartID, ownerID string) (*domain.Cart, error) {
	if _, err := storage.Conn(ctx, r.db).ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return nil, err
	}
	return r.FindByOwner(ctx, ownerID)
}
