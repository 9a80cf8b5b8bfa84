package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// productRepository — in-memory реализация ProductRepository.
type productRepository struct {
	state *state
}

func (r *productRepository) Create(_ context.Context, product domain.Product) error {
	if _, exists := r.state.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	r.state.products[product.ID] = product
	return nil
}

func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	product, ok := r.state.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// DecreaseStock списывает остаток. Глобальный мьютекс Store сериализует
// конкурирующие списания так же, как SELECT ... FOR UPDATE в PostgreSQL.
func (r *productRepository) DecreaseStock(_ context.Context, productID string, qty int32) (domain.Product, error) {
	product, ok := r.state.products[productID]
	if !ok || !product.Active() {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err := product.DecreaseStock(qty); err != nil {
		return domain.Product{}, err
	}
	product.UpdatedAt = time.Now().UTC()
	r.state.products[productID] = product
	return product, nil
}

func (r *productRepository) IncreaseStock(_ context.Context, productID string, qty int32) error {
	product, ok := r.state.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if err := product.IncreaseStock(qty); err != nil {
		return err
	}
	product.UpdatedAt = time.Now().UTC()
	r.state.products[productID] = product
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
