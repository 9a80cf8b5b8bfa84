package memory

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// paymentRepository — in-memory реализация PaymentRepository.
type paymentRepository struct {
	state *state
}

func (r *paymentRepository) Create(_ context.Context, payment domain.Payment) error {
	for _, existing := range r.state.payments {
		if existing.OrderID == payment.OrderID {
			return domain.ErrPaymentExists
		}
	}
	r.state.payments[payment.ID] = payment
	return nil
}

func (r *paymentRepository) Get(_ context.Context, id string) (domain.Payment, error) {
	payment, ok := r.state.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

func (r *paymentRepository) GetByOrderID(_ context.Context, orderID string) (domain.Payment, error) {
	for _, payment := range r.state.payments {
		if payment.OrderID == orderID {
			return payment, nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

func (r *paymentRepository) GetByOrderNumber(_ context.Context, orderNumber string) (domain.Payment, error) {
	for _, order := range r.state.orders {
		if order.Number != orderNumber {
			continue
		}
		for _, payment := range r.state.payments {
			if payment.OrderID == order.ID {
				return payment, nil
			}
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

func (r *paymentRepository) Save(_ context.Context, payment domain.Payment) error {
	if _, ok := r.state.payments[payment.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	r.state.payments[payment.ID] = payment
	return nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
