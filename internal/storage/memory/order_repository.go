package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository.
type orderRepository struct {
	state *state
}

func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	if _, exists := r.state.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	for _, existing := range r.state.orders {
		if existing.Number == order.Number {
			return domain.ErrOrderNumberTaken
		}
	}
	// Сохраняем копию позиций, чтобы избежать мутаций извне.
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	r.state.orders[order.ID] = order
	return nil
}

func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	order, ok := r.state.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	return order, nil
}

func (r *orderRepository) GetByNumber(_ context.Context, number string) (domain.Order, error) {
	for _, order := range r.state.orders {
		if order.Number == number {
			order.Items = append([]domain.OrderItem(nil), order.Items...)
			return order, nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// GetForUpdate эквивалентен Get: эксклюзивность обеспечивает глобальный
// мьютекс Store на всю транзакцию.
func (r *orderRepository) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *orderRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.Order, error) {
	result := make([]domain.Order, 0)
	for _, order := range r.state.orders {
		if order.UserID != userID {
			continue
		}
		order.Items = append([]domain.OrderItem(nil), order.Items...)
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *orderRepository) Save(_ context.Context, order domain.Order) error {
	current, ok := r.state.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	// Позиции неизменяемы после создания.
	order.Items = current.Items
	r.state.orders[order.ID] = order
	return nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
