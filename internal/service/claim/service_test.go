package claim

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

// fixture — оплаченный заказ из двух позиций с завершённым платежом.
type fixture struct {
	store   *memory.Store
	svc     *Service
	order   domain.Order
	payment domain.Payment
}

func newFixture(t *testing.T, orderStatus domain.OrderStatus) *fixture {
	t.Helper()

	store := memory.NewStore()
	now := time.Now().UTC()

	order := domain.Order{
		ID:     "order-1",
		Number: "ORD202501010001",
		UserID: "user-1",
		Status: orderStatus,
		Items: []domain.OrderItem{
			{
				ID:           "item-1",
				ProductID:    "product-1",
				ProductName:  "чайник",
				Qty:          5,
				PriceAtOrder: decimal.NewFromInt(30000),
			},
			{
				ID:           "item-2",
				ProductID:    "product-2",
				ProductName:  "кружка",
				Qty:          2,
				PriceAtOrder: decimal.RequireFromString("1500.50"),
			},
		},
		TotalPrice:      decimal.RequireFromString("153001.00"),
		ShippingAddress: "ул. Ленина, 1",
		ReceiverName:    "Иван",
		ReceiverPhone:   "+70000000000",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	paidAt := now
	payment := domain.Payment{
		ID:            "payment-1",
		OrderID:       order.ID,
		Method:        domain.PaymentMethodCard,
		Amount:        order.TotalPrice,
		Status:        domain.PaymentStatusCompleted,
		PaymentKey:    "pk-1",
		TransactionID: "pk-1",
		PaidAt:        &paidAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := store.Within(context.Background(), func(tx domain.RepositorySet) error {
		for _, product := range []domain.Product{
			{ID: "product-1", Name: "чайник", Price: decimal.NewFromInt(30000), Stock: 10, Status: domain.ProductStatusActive},
			{ID: "product-2", Name: "кружка", Price: decimal.RequireFromString("1500.50"), Stock: 3, Status: domain.ProductStatusActive},
		} {
			if err := tx.Products().Create(context.Background(), product); err != nil {
				return err
			}
		}
		if err := tx.Orders().Create(context.Background(), order); err != nil {
			return err
		}
		return tx.Payments().Create(context.Background(), payment)
	})
	require.NoError(t, err)

	return &fixture{
		store:   store,
		svc:     NewServiceWithoutMetrics(store, nil),
		order:   order,
		payment: payment,
	}
}

func (f *fixture) productStock(t *testing.T, productID string) int32 {
	t.Helper()
	var stock int32
	err := f.store.Within(context.Background(), func(tx domain.RepositorySet) error {
		product, err := tx.Products().Get(context.Background(), productID)
		if err != nil {
			return err
		}
		stock = product.Stock
		return nil
	})
	require.NoError(t, err)
	return stock
}

func (f *fixture) reload(t *testing.T) (domain.Order, domain.Payment) {
	t.Helper()
	var order domain.Order
	var payment domain.Payment
	err := f.store.Within(context.Background(), func(tx domain.RepositorySet) error {
		loaded, err := tx.Orders().Get(context.Background(), f.order.ID)
		if err != nil {
			return err
		}
		order = loaded
		payment, err = tx.Payments().GetByOrderID(context.Background(), f.order.ID)
		return err
	})
	require.NoError(t, err)
	return order, payment
}

func (f *fixture) outboxEventTypes(t *testing.T) []string {
	t.Helper()
	pending, err := f.store.Outbox().PullPending(100)
	require.NoError(t, err)
	types := make([]string, 0, len(pending))
	for _, msg := range pending {
		types = append(types, msg.EventType)
	}
	return types
}

func TestCreate_ReturnClaimStaysReceived(t *testing.T) {
	f := newFixture(t, domain.OrderStatusDelivered)

	claim, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:        "user-1",
		OrderID:       "order-1",
		Type:          domain.ClaimTypeReturn,
		Reason:        "царапина на корпусе",
		Items:         []ItemRequest{{OrderItemID: "item-1", Qty: 2}},
		BankName:      "bank",
		AccountNumber: "40817810000000000001",
	})
	require.NoError(t, err)

	require.Equal(t, domain.ClaimStatusReceived, claim.Status)
	require.True(t, claim.RefundAmount.Equal(decimal.NewFromInt(60000)),
		"refund amount %s", claim.RefundAmount)
	require.Equal(t, string(domain.PaymentMethodCard), claim.RefundMethod)
	require.Len(t, claim.Items, 1)
	require.Equal(t, "чайник", claim.Items[0].ProductName)

	// до завершения клейма склад и платёж не трогаются
	require.EqualValues(t, 10, f.productStock(t, "product-1"))
	_, payment := f.reload(t)
	require.Equal(t, domain.PaymentStatusCompleted, payment.Status)

	require.Equal(t, []string{"claim.created"}, f.outboxEventTypes(t))
}

func TestCreate_CancelClaimCompletesImmediately(t *testing.T) {
	f := newFixture(t, domain.OrderStatusPaid)

	claim, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeCancel,
		Reason:  "передумал",
		Items: []ItemRequest{
			{OrderItemID: "item-1", Qty: 5},
			{OrderItemID: "item-2", Qty: 2},
		},
	})
	require.NoError(t, err)

	require.Equal(t, domain.ClaimStatusCompleted, claim.Status)
	require.NotNil(t, claim.CompletedAt)
	require.True(t, claim.RefundAmount.Equal(decimal.RequireFromString("153001.00")),
		"refund amount %s", claim.RefundAmount)

	order, payment := f.reload(t)
	require.Equal(t, domain.OrderStatusCancelled, order.Status)
	require.Equal(t, domain.PaymentStatusRefunded, payment.Status)
	require.True(t, payment.RefundAmount.Equal(payment.Amount))

	require.EqualValues(t, 15, f.productStock(t, "product-1"))
	require.EqualValues(t, 5, f.productStock(t, "product-2"))

	require.ElementsMatch(t, []string{"claim.created", "claim.completed"}, f.outboxEventTypes(t))
}

func TestCreate_AggregateQtyLimit(t *testing.T) {
	f := newFixture(t, domain.OrderStatusDelivered)

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 3}},
	})
	require.NoError(t, err)

	// 3 уже заявлено, 3 сверх пяти не пройдёт
	_, err = f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 3}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	// ровно остаток — можно
	_, err = f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 2}},
	})
	require.NoError(t, err)
}

func TestCreate_RejectedClaimsDoNotCount(t *testing.T) {
	f := newFixture(t, domain.OrderStatusDelivered)

	first, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 4}},
	})
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), first.ID, "фото не подтверждает брак")
	require.NoError(t, err)

	// после отклонения лимит снова свободен
	_, err = f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 5}},
	})
	require.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, domain.OrderStatusDelivered)

	cases := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{
			name: "foreign order looks missing",
			req: CreateRequest{
				UserID: "user-2", OrderID: "order-1", Type: domain.ClaimTypeReturn,
				Reason: "брак", Items: []ItemRequest{{OrderItemID: "item-1", Qty: 1}},
			},
			wantErr: domain.ErrOrderNotFound,
		},
		{
			name: "cancel not allowed after delivery",
			req: CreateRequest{
				UserID: "user-1", OrderID: "order-1", Type: domain.ClaimTypeCancel,
				Reason: "передумал", Items: []ItemRequest{{OrderItemID: "item-1", Qty: 1}},
			},
			wantErr: domain.ErrInvalidState,
		},
		{
			name: "item from another order",
			req: CreateRequest{
				UserID: "user-1", OrderID: "order-1", Type: domain.ClaimTypeReturn,
				Reason: "брак", Items: []ItemRequest{{OrderItemID: "item-999", Qty: 1}},
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "qty above ordered",
			req: CreateRequest{
				UserID: "user-1", OrderID: "order-1", Type: domain.ClaimTypeReturn,
				Reason: "брак", Items: []ItemRequest{{OrderItemID: "item-2", Qty: 3}},
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "duplicate item",
			req: CreateRequest{
				UserID: "user-1", OrderID: "order-1", Type: domain.ClaimTypeReturn,
				Reason: "брак",
				Items: []ItemRequest{
					{OrderItemID: "item-1", Qty: 1},
					{OrderItemID: "item-1", Qty: 1},
				},
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "empty reason",
			req: CreateRequest{
				UserID: "user-1", OrderID: "order-1", Type: domain.ClaimTypeReturn,
				Items: []ItemRequest{{OrderItemID: "item-1", Qty: 1}},
			},
			wantErr: domain.ErrInvalidInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCreate_ReturnNotAllowedBeforeDelivery(t *testing.T) {
	f := newFixture(t, domain.OrderStatusPaid)

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 1}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestAdvance_ReturnFlowEndsWithRefundAndRestock(t *testing.T) {
	f := newFixture(t, domain.OrderStatusDelivered)

	claim, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 2}},
	})
	require.NoError(t, err)

	for _, want := range []domain.ClaimStatus{
		domain.ClaimStatusProcessing,
		domain.ClaimStatusPickup,
		domain.ClaimStatusPickedUp,
	} {
		claim, err = f.svc.Advance(context.Background(), claim.ID)
		require.NoError(t, err)
		require.Equal(t, want, claim.Status)
	}

	// последний шаг запускает финансовые эффекты
	claim, err = f.svc.Advance(context.Background(), claim.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ClaimStatusCompleted, claim.Status)

	order, payment := f.reload(t)
	require.Equal(t, domain.OrderStatusCancelled, order.Status)
	require.Equal(t, domain.PaymentStatusRefunded, payment.Status)

	// восстанавливается заявленное количество, не весь заказ
	require.EqualValues(t, 12, f.productStock(t, "product-1"))
	require.EqualValues(t, 3, f.productStock(t, "product-2"))

	_, err = f.svc.Advance(context.Background(), claim.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestComplete_AdminShortcut(t *testing.T) {
	f := newFixture(t, domain.OrderStatusDelivered)

	claim, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-2", Qty: 1}},
	})
	require.NoError(t, err)

	completed, err := f.svc.Complete(context.Background(), claim.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ClaimStatusCompleted, completed.Status)
	require.EqualValues(t, 4, f.productStock(t, "product-2"))

	_, err = f.svc.Complete(context.Background(), claim.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t, domain.OrderStatusDelivered)

	claim, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 5}},
	})
	require.NoError(t, err)

	// чужой клейм неотличим от отсутствующего
	err = f.svc.Withdraw(context.Background(), "user-2", claim.ID)
	require.ErrorIs(t, err, domain.ErrClaimNotFound)

	err = f.svc.Withdraw(context.Background(), "user-1", claim.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), "user-1", claim.ID)
	require.ErrorIs(t, err, domain.ErrClaimNotFound)

	// после отзыва лимит освобождён
	_, err = f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 5}},
	})
	require.NoError(t, err)
}

func TestWithdraw_OnlyReceived(t *testing.T) {
	f := newFixture(t, domain.OrderStatusDelivered)

	claim, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 1}},
	})
	require.NoError(t, err)

	_, err = f.svc.Advance(context.Background(), claim.ID)
	require.NoError(t, err)

	err = f.svc.Withdraw(context.Background(), "user-1", claim.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestGetAndList_Ownership(t *testing.T) {
	f := newFixture(t, domain.OrderStatusDelivered)

	claim, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		OrderID: "order-1",
		Type:    domain.ClaimTypeReturn,
		Reason:  "брак",
		Items:   []ItemRequest{{OrderItemID: "item-1", Qty: 1}},
	})
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), "user-2", claim.ID)
	require.ErrorIs(t, err, domain.ErrClaimNotFound)

	got, err := f.svc.Get(context.Background(), "user-1", claim.ID)
	require.NoError(t, err)
	require.Equal(t, claim.ID, got.ID)

	listed, err := f.svc.List(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	empty, err := f.svc.List(context.Background(), "user-2", 0)
	require.NoError(t, err)
	require.Empty(t, empty)
}
