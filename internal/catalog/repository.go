package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, main_image, price, stock, quantity`

func scanProduct(row interface{ Scan(dest ...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.MainImage, &p.Price, &p.Stock, &p.Quantity)
	return p, err
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := storage.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(storage.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	rows, err := storage.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// FindAvailable returns the products referenced by lines whose stock covers the
// requested quantity. Lines that cannot be served are simply absent.
func (r *ProductRepository) FindAvailable(ctx context.Context, lines []domain.CartLine) ([]domain.Product, error) {
	if len(lines) == 0 {
		return []domain.Product{}, nil
	}

	ids := make([]string, len(lines))
	quantities := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
		quantities[i] = int64(line.Quantity)
	}

	rows, err := storage.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT p.id, p.name, p.main_image, p.price, p.stock, p.quantity
		FROM products p
		JOIN unnest($1::text[], $2::int[]) AS wanted(id, qty) ON wanted.id = p.id
		WHERE p.stock >= wanted.qty
	`, pq.Array(ids), pq.Array(quantities))
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// DecrementStock reserves quantity units. Stock never goes below zero.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := storage.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, productID)
	}

	return nil
}

// IncrementStock returns previously reserved units.
func (r *ProductRepository) IncrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := storage.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}

	return nil
}

// Restock adds newly received units to both the available stock and the
// nominal quantity.
func (r *ProductRepository) Restock(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	p, err := scanProduct(storage.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns+`
	`, productID, quantity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
