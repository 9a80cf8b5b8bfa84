package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func seedProduct(t *testing.T, store *Store, id string, stock int32) {
	t.Helper()
	err := store.Within(context.Background(), func(tx domain.RepositorySet) error {
		return tx.Products().Create(context.Background(), domain.Product{
			ID:     id,
			Name:   "product " + id,
			Price:  decimal.NewFromInt(1000),
			Stock:  stock,
			Status: domain.ProductStatusActive,
		})
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func TestWithin_RollbackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedProduct(t, store, "p1", 10)

	boom := errors.New("boom")
	err := store.Within(ctx, func(tx domain.RepositorySet) error {
		if _, err := tx.Products().DecreaseStock(ctx, "p1", 4); err != nil {
			return err
		}
		if _, err := tx.Outbox().Enqueue(domain.OutboxMessage{EventType: "order.created"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// Ни списание, ни outbox-сообщение не должны пережить откат.
	_ = store.Within(ctx, func(tx domain.RepositorySet) error {
		product, err := tx.Products().Get(ctx, "p1")
		if err != nil {
			t.Fatalf("get product: %v", err)
		}
		if product.Stock != 10 {
			t.Fatalf("stock = %d, want 10 after rollback", product.Stock)
		}
		return nil
	})
	stats, err := store.Outbox().Stats()
	if err != nil {
		t.Fatalf("outbox stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("pending outbox = %d, want 0 after rollback", stats.PendingCount)
	}
}

func TestDecreaseStock_UnderflowAndInactive(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedProduct(t, store, "p1", 3)

	err := store.Within(ctx, func(tx domain.RepositorySet) error {
		_, err := tx.Products().DecreaseStock(ctx, "p1", 4)
		return err
	})
	if !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	err = store.Within(ctx, func(tx domain.RepositorySet) error {
		_, err := tx.Products().DecreaseStock(ctx, "missing", 1)
		return err
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestOrderRepository_NumberUniqueness(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	order := domain.Order{
		ID:         "o1",
		Number:     "ORD202608300042",
		UserID:     "u1",
		Status:     domain.OrderStatusPending,
		TotalPrice: decimal.Zero,
	}
	if err := store.Within(ctx, func(tx domain.RepositorySet) error {
		return tx.Orders().Create(ctx, order)
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := order
	dup.ID = "o2"
	err := store.Within(ctx, func(tx domain.RepositorySet) error {
		return tx.Orders().Create(ctx, dup)
	})
	if !errors.Is(err, domain.ErrOrderNumberTaken) {
		t.Fatalf("expected ErrOrderNumberTaken, got %v", err)
	}
}

func TestPaymentRepository_OneTouchPerOrder(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	first := domain.Payment{ID: "pay1", OrderID: "o1", Method: domain.PaymentMethodCard, Amount: decimal.NewFromInt(100)}
	second := domain.Payment{ID: "pay2", OrderID: "o1", Method: domain.PaymentMethodCard, Amount: decimal.NewFromInt(100)}

	err := store.Within(ctx, func(tx domain.RepositorySet) error {
		if err := tx.Payments().Create(ctx, first); err != nil {
			return err
		}
		return tx.Payments().Create(ctx, second)
	})
	if !errors.Is(err, domain.ErrPaymentExists) {
		t.Fatalf("expected ErrPaymentExists, got %v", err)
	}
}

func TestClaimRepository_SumClaimedQty(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	mk := func(id string, status domain.ClaimStatus, qty int32) domain.Claim {
		return domain.Claim{
			ID:      id,
			OrderID: "o1",
			UserID:  "u1",
			Type:    domain.ClaimTypeReturn,
			Status:  status,
			Reason:  "r",
			Items:   []domain.ClaimItem{{ID: id + "-i", OrderItemID: "item-1", Qty: qty}},
		}
	}

	err := store.Within(ctx, func(tx domain.RepositorySet) error {
		if err := tx.Claims().Create(ctx, mk("c1", domain.ClaimStatusReceived, 2)); err != nil {
			return err
		}
		if err := tx.Claims().Create(ctx, mk("c2", domain.ClaimStatusCompleted, 1)); err != nil {
			return err
		}
		// Отклонённые клеймы не считаются.
		return tx.Claims().Create(ctx, mk("c3", domain.ClaimStatusRejected, 5))
	})
	if err != nil {
		t.Fatalf("seed claims: %v", err)
	}

	_ = store.Within(ctx, func(tx domain.RepositorySet) error {
		total, err := tx.Claims().SumClaimedQty(ctx, "item-1")
		if err != nil {
			t.Fatalf("sum: %v", err)
		}
		if total != 3 {
			t.Fatalf("claimed qty = %d, want 3", total)
		}
		return nil
	})
}

func TestOutboxHandle_PullAndMark(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Within(ctx, func(tx domain.RepositorySet) error {
		_, err := tx.Outbox().Enqueue(domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   "o1",
			EventType:     "order.created",
			Payload:       []byte(`{}`),
		})
		return err
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	outbox := store.Outbox()
	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if err := outbox.MarkSent(pending[0].ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	stats, err := outbox.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("pending after mark = %d, want 0", stats.PendingCount)
	}
}
