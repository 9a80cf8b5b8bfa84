package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productRepository struct {
	q querier
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (
			id, name, price, stock, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		product.ID, product.Name, product.Price, product.Stock,
		string(product.Status), product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, `
		SELECT id, name, price, stock, status, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id))
}

// DecreaseStock берёт эксклюзивную блокировку строки товара (FOR UPDATE),
// проверяет остаток и списывает. Конкурирующие списания по одному товару
// сериализуются на уровне строки, поэтому oversell невозможен ни при каком
// порядке исполнения.
func (r *productRepository) DecreaseStock(ctx context.Context, productID string, qty int32) (domain.Product, error) {
	product, err := r.scanOne(r.q.QueryRowContext(ctx, `
		SELECT id, name, price, stock, status, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID))
	if err != nil {
		return domain.Product{}, err
	}
	if !product.Active() {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err := product.DecreaseStock(qty); err != nil {
		return domain.Product{}, err
	}

	product.UpdatedAt = time.Now().UTC()
	if _, err := r.q.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1
	`, product.ID, product.Stock, product.UpdatedAt); err != nil {
		return domain.Product{}, fmt.Errorf("update product stock: %w", err)
	}
	return product, nil
}

// IncreaseStock — безусловный атомарный инкремент; строковая блокировка не
// нужна, операция коммутативна и не может увести остаток в минус.
func (r *productRepository) IncreaseStock(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrInvalidInput
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = $3 WHERE id = $1
	`, productID, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increase product stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) scanOne(row *sql.Row) (domain.Product, error) {
	var (
		product domain.Product
		status  string
	)
	err := row.Scan(
		&product.ID, &product.Name, &product.Price, &product.Stock,
		&status, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	product.Status = domain.ProductStatus(status)
	return product, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
