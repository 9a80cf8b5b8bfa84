package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         "order-1",
		Number:     "ORD202608300001",
		UserID:     "user-1",
		Status:     domain.OrderStatusPending,
		TotalPrice: decimal.NewFromInt(60000),
		Items: []domain.OrderItem{
			{
				ID:           "item-1",
				ProductID:    "product-1",
				ProductName:  "wool coat",
				Qty:          2,
				PriceAtOrder: decimal.NewFromInt(30000),
				CreatedAt:    now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no user",
			mut: func(o *domain.Order) {
				o.UserID = ""
			},
		},
		{
			name: "no number",
			mut: func(o *domain.Order) {
				o.Number = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalPrice = decimal.NewFromInt(59999)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderCancel_AllowedStatuses(t *testing.T) {
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusConfirmed,
		domain.OrderStatusPaid,
	} {
		order := makeOrder()
		order.Status = status
		if err := order.Cancel(); err != nil {
			t.Fatalf("cancel from %s: unexpected error %v", status, err)
		}
		if order.Status != domain.OrderStatusCancelled {
			t.Fatalf("cancel from %s: status = %s", status, order.Status)
		}
	}
}

func TestOrderCancel_RejectedStatuses(t *testing.T) {
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusShipping,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	} {
		order := makeOrder()
		order.Status = status
		err := order.Cancel()
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("cancel from %s: expected ErrInvalidState, got %v", status, err)
		}
		if order.Status != status {
			t.Fatalf("cancel from %s: status mutated to %s", status, order.Status)
		}
	}
}

func TestOrderMarkPaid(t *testing.T) {
	order := makeOrder()
	if err := order.MarkPaid(); err != nil {
		t.Fatalf("mark paid from PENDING: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("status = %s, want PAID", order.Status)
	}

	// Повторная оплата и оплата отменённого заказа отклоняются.
	if err := order.MarkPaid(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second mark paid: expected ErrInvalidState, got %v", err)
	}

	cancelled := makeOrder()
	cancelled.Status = domain.OrderStatusCancelled
	if err := cancelled.MarkPaid(); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("mark paid cancelled: expected ErrInvalidState, got %v", err)
	}
}

func TestOrderItemSubtotal(t *testing.T) {
	item := domain.OrderItem{Qty: 3, PriceAtOrder: decimal.RequireFromString("19.99")}
	want := decimal.RequireFromString("59.97")
	if !item.Subtotal().Equal(want) {
		t.Fatalf("subtotal = %s, want %s", item.Subtotal(), want)
	}
}

func TestNewOrderNumber_Format(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	number := domain.NewOrderNumber(now)
	if !strings.HasPrefix(number, "ORD20260830") {
		t.Fatalf("order number %q missing date prefix", number)
	}
	if len(number) != len("ORD20260830")+4 {
		t.Fatalf("order number %q has unexpected length", number)
	}
}
