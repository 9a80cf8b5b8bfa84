package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

const testOrderNumber = "ORD202501010042"

// newPendingOrder поднимает фикстуру: заказ PENDING с платежом PENDING на 60000.
func newPendingOrder(t *testing.T) (*Service, *memory.Store, *MockGateway) {
	t.Helper()

	store := memory.NewStore()
	now := time.Now().UTC()

	err := store.Within(context.Background(), func(tx domain.RepositorySet) error {
		order := domain.Order{
			ID:     "order-1",
			Number: testOrderNumber,
			UserID: "user-1",
			Status: domain.OrderStatusPending,
			Items: []domain.OrderItem{
				{
					ID:           "item-1",
					ProductID:    "product-1",
					ProductName:  "чайник",
					Qty:          2,
					PriceAtOrder: decimal.NewFromInt(30000),
				},
			},
			TotalPrice:      decimal.NewFromInt(60000),
			ShippingAddress: "адрес",
			ReceiverName:    "Иван",
			ReceiverPhone:   "+7",
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Orders().Create(context.Background(), order); err != nil {
			return err
		}
		return tx.Payments().Create(context.Background(), domain.Payment{
			ID:        "payment-1",
			OrderID:   order.ID,
			Method:    domain.PaymentMethodCard,
			Amount:    order.TotalPrice,
			Status:    domain.PaymentStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	require.NoError(t, err)

	gateway := NewMockGateway()
	return NewServiceWithoutMetrics(store, gateway, nil), store, gateway
}

func reloadState(t *testing.T, store *memory.Store) (domain.Order, domain.Payment) {
	t.Helper()
	var order domain.Order
	var payment domain.Payment
	err := store.Within(context.Background(), func(tx domain.RepositorySet) error {
		loaded, err := tx.Orders().Get(context.Background(), "order-1")
		if err != nil {
			return err
		}
		order = loaded
		payment, err = tx.Payments().GetByOrderID(context.Background(), "order-1")
		return err
	})
	require.NoError(t, err)
	return order, payment
}

func confirmRequest() ConfirmRequest {
	return ConfirmRequest{
		PaymentKey:  "pk-test-1",
		OrderNumber: testOrderNumber,
		Amount:      decimal.NewFromInt(60000),
	}
}

func TestConfirm_Success(t *testing.T) {
	svc, store, gateway := newPendingOrder(t)

	payment, err := svc.Confirm(context.Background(), confirmRequest())
	require.NoError(t, err)

	require.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	require.Equal(t, "pk-test-1", payment.PaymentKey)
	require.NotNil(t, payment.PaidAt)

	order, stored := reloadState(t, store)
	require.Equal(t, domain.OrderStatusPaid, order.Status)
	require.Equal(t, domain.PaymentStatusCompleted, stored.Status)

	// ключ идемпотентности подтверждения — номер заказа
	require.Equal(t, 1, gateway.ConfirmCalls)
	require.Equal(t, testOrderNumber, gateway.LastConfirm.IdempotencyKey)
	require.True(t, gateway.LastConfirm.Amount.Equal(decimal.NewFromInt(60000)))

	pending, err := store.Outbox().PullPending(10)
	require.NoError(t, err)
	types := make([]string, 0, len(pending))
	for _, msg := range pending {
		types = append(types, msg.EventType)
	}
	require.ElementsMatch(t, []string{"payment.confirmed", "order.paid"}, types)
}

func TestConfirm_RepeatDoesNotHitGatewayAgain(t *testing.T) {
	svc, store, gateway := newPendingOrder(t)

	_, err := svc.Confirm(context.Background(), confirmRequest())
	require.NoError(t, err)

	repeat, err := svc.Confirm(context.Background(), confirmRequest())
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusCompleted, repeat.Status)

	require.Equal(t, 1, gateway.ConfirmCalls)

	order, _ := reloadState(t, store)
	require.Equal(t, domain.OrderStatusPaid, order.Status)
}

func TestConfirm_ConcurrentRequestsAreIdempotent(t *testing.T) {
	svc, store, gateway := newPendingOrder(t)

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Confirm(context.Background(), confirmRequest())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// проигравший перечитывает платёж под блокировкой заказа и тоже
	// получает идемпотентный успех, а не ошибку перехода
	for err := range results {
		require.NoError(t, err)
	}

	order, payment := reloadState(t, store)
	require.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	require.Equal(t, domain.OrderStatusPaid, order.Status)
	require.GreaterOrEqual(t, gateway.ConfirmCalls, 1)
	require.LessOrEqual(t, gateway.ConfirmCalls, workers)
}

func TestConfirm_AmountMismatchLeavesPaymentPending(t *testing.T) {
	svc, store, gateway := newPendingOrder(t)

	req := confirmRequest()
	req.Amount = decimal.NewFromInt(59999)

	_, err := svc.Confirm(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrPaymentAmountMismatch)

	// шлюз не вызывался, платёж можно подтвердить повторно с верной суммой
	require.Equal(t, 0, gateway.ConfirmCalls)
	order, payment := reloadState(t, store)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, domain.PaymentStatusPending, payment.Status)
}

func TestConfirm_CancelledOrderFailsPayment(t *testing.T) {
	svc, store, gateway := newPendingOrder(t)

	err := store.Within(context.Background(), func(tx domain.RepositorySet) error {
		order, err := tx.Orders().Get(context.Background(), "order-1")
		if err != nil {
			return err
		}
		order.Status = domain.OrderStatusCancelled
		return tx.Orders().Save(context.Background(), order)
	})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), confirmRequest())
	require.ErrorIs(t, err, domain.ErrOrderAlreadyCancelled)

	require.Equal(t, 0, gateway.ConfirmCalls)
	_, payment := reloadState(t, store)
	require.Equal(t, domain.PaymentStatusFailed, payment.Status)
}

func TestConfirm_GatewayRejectionMarksPaymentFailed(t *testing.T) {
	svc, store, gateway := newPendingOrder(t)
	gateway.ConfirmErr = &domain.GatewayError{
		Code:    "REJECT_CARD_COMPANY",
		Message: "card issuer rejected",
	}

	_, err := svc.Confirm(context.Background(), confirmRequest())
	require.Error(t, err)

	gatewayErr, ok := domain.AsGatewayError(err)
	require.True(t, ok)
	require.Equal(t, "REJECT_CARD_COMPANY", gatewayErr.Code)

	order, payment := reloadState(t, store)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, domain.PaymentStatusFailed, payment.Status)
}

func TestConfirm_UnknownOrderNumber(t *testing.T) {
	svc, _, gateway := newPendingOrder(t)

	req := confirmRequest()
	req.OrderNumber = "ORD000000000000"

	_, err := svc.Confirm(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
	require.Equal(t, 0, gateway.ConfirmCalls)
}

func TestConfirm_MissingFields(t *testing.T) {
	svc, _, _ := newPendingOrder(t)

	_, err := svc.Confirm(context.Background(), ConfirmRequest{OrderNumber: testOrderNumber})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Confirm(context.Background(), ConfirmRequest{PaymentKey: "pk"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCancel_RefundsThroughGateway(t *testing.T) {
	svc, _, gateway := newPendingOrder(t)

	_, err := svc.Confirm(context.Background(), confirmRequest())
	require.NoError(t, err)

	refunded, err := svc.Cancel(context.Background(), "payment-1", "customer request")
	require.NoError(t, err)

	require.Equal(t, domain.PaymentStatusRefunded, refunded.Status)
	require.True(t, refunded.RefundAmount.Equal(refunded.Amount))
	require.NotNil(t, refunded.RefundedAt)

	// отмена живёт в собственном неймспейсе ключей идемпотентности
	require.Equal(t, 1, gateway.CancelCalls)
	require.Equal(t, "pk-test-1", gateway.LastCancelKey)
	require.Equal(t, "cancel_"+testOrderNumber, gateway.LastCancelIdem)
	require.Equal(t, "customer request", gateway.LastCancelCause)

	_, err = svc.Cancel(context.Background(), "payment-1", "customer request")
	require.ErrorIs(t, err, domain.ErrPaymentAlreadyRefunded)
	require.Equal(t, 1, gateway.CancelCalls)
}

func TestCancel_GatewayFailureLeavesPaymentCompleted(t *testing.T) {
	svc, store, gateway := newPendingOrder(t)

	_, err := svc.Confirm(context.Background(), confirmRequest())
	require.NoError(t, err)

	gateway.CancelErr = &domain.GatewayError{Code: "PROVIDER_ERROR", Message: "timeout"}

	_, err = svc.Cancel(context.Background(), "payment-1", "customer request")
	require.Error(t, err)

	_, payment := reloadState(t, store)
	require.Equal(t, domain.PaymentStatusCompleted, payment.Status)
}

func TestGetByOrder_Ownership(t *testing.T) {
	svc, _, _ := newPendingOrder(t)

	payment, err := svc.GetByOrder(context.Background(), "user-1", "order-1")
	require.NoError(t, err)
	require.Equal(t, "payment-1", payment.ID)

	_, err = svc.GetByOrder(context.Background(), "user-2", "order-1")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "known gateway code",
			err: fmt.Errorf("%w: %w", domain.ErrGatewayConfirmFailed,
				&domain.GatewayError{Code: "REJECT_CARD_COMPANY", Message: "raw"}),
			want: "The card issuer rejected the payment.",
		},
		{
			name: "unknown gateway code hides raw message",
			err:  &domain.GatewayError{Code: "SOMETHING_NEW", Message: "internal details"},
			want: "Payment was rejected by the payment provider. Please try again.",
		},
		{
			name: "amount mismatch",
			err:  domain.ErrPaymentAmountMismatch,
			want: "Payment amount does not match the order total.",
		},
		{
			name: "cancelled order",
			err:  domain.ErrOrderAlreadyCancelled,
			want: "This order has been cancelled and can no longer be paid.",
		},
		{
			name: "anything else",
			err:  context.DeadlineExceeded,
			want: "Payment processing failed. Please try again later.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, UserMessage(tc.err))
		})
	}
}
