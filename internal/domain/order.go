package domain

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed — заказ подтверждён магазином.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusPaid — оплата подтверждена платёжным шлюзом.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusShipping — заказ передан в доставку; отмена более невозможна.
	OrderStatusShipping OrderStatus = "SHIPPING"
	// OrderStatusDelivered — заказ доставлен (терминальный статус).
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён до отгрузки (терминальный статус).
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderItem — одна позиция заказа. Цена и имя товара копируются в момент
// создания заказа и больше никогда не перечитываются из каталога: заказ —
// финансовый документ, и последующие изменения каталога его не трогают.
type OrderItem struct {
	ID           string
	ProductID    string
	ProductName  string
	Qty          int32
	PriceAtOrder decimal.Decimal
	CreatedAt    time.Time
}

// Subtotal возвращает стоимость позиции по зафиксированной цене.
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtOrder.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// Order агрегирует состояние заказа, его позиции и данные доставки.
// Позиции принадлежат заказу эксклюзивно: создаются вместе с ним и
// удаляются только вместе с ним.
type Order struct {
	ID     string
	Number string
	UserID string
	Status OrderStatus

	Items      []OrderItem
	TotalPrice decimal.Decimal

	ShippingAddress string
	ReceiverName    string
	ReceiverPhone   string
	ShippingMemo    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cancel переводит заказ в CANCELLED. Запрещено для SHIPPING и DELIVERED,
// повторная отмена тоже отклоняется. Сам по себе переход не трогает ни склад,
// ни платёж — это зона ответственности оркестратора и claim-движка.
func (o *Order) Cancel() error {
	switch o.Status {
	case OrderStatusShipping, OrderStatusDelivered, OrderStatusCancelled:
		return fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidState, o.Status)
	}
	o.Status = OrderStatusCancelled
	return nil
}

// CancelByClaim переводит заказ в CANCELLED по завершённому клейму.
// В отличие от Cancel, допускает DELIVERED: завершённый возврат закрывает
// даже доставленный заказ. SHIPPING по-прежнему запрещён.
func (o *Order) CancelByClaim() error {
	switch o.Status {
	case OrderStatusShipping, OrderStatusCancelled:
		return fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidState, o.Status)
	}
	o.Status = OrderStatusCancelled
	return nil
}

// MarkPaid переводит заказ в PAID. Допустимо только из PENDING/CONFIRMED.
func (o *Order) MarkPaid() error {
	if o.Status != OrderStatusPending && o.Status != OrderStatusConfirmed {
		return fmt.Errorf("%w: cannot mark order paid in status %s", ErrInvalidState, o.Status)
	}
	o.Status = OrderStatusPaid
	return nil
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, fmt.Errorf("%w: user_id is required", ErrInvalidInput))
	}
	if o.Number == "" {
		errs = append(errs, fmt.Errorf("%w: order number is required", ErrInvalidInput))
	}
	if len(o.Items) == 0 {
		errs = append(errs, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput))
	}

	// Сверяем сумму заказа с суммой позиций: priceAtOrder * qty.
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Qty < 1 {
			errs = append(errs, fmt.Errorf("%w: item qty must be at least 1", ErrInvalidInput))
		}
		if item.PriceAtOrder.IsNegative() {
			errs = append(errs, fmt.Errorf("%w: item price must be non-negative", ErrInvalidInput))
		}
		calc = calc.Add(item.Subtotal())
	}
	if !calc.Equal(o.TotalPrice) {
		errs = append(errs, fmt.Errorf("%w: order total does not match items sum", ErrInvalidInput))
	}

	return errs
}

// FindItem возвращает позицию заказа по её идентификатору.
func (o *Order) FindItem(orderItemID string) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ID == orderItemID {
			return item, true
		}
	}
	return OrderItem{}, false
}

// NewOrderNumber генерирует человекочитаемый номер вида ORD20260830 + 4 цифры.
// Уникальность гарантирует unique constraint в хранилище; коллизия
// обрабатывается повторной генерацией на стороне оркестратора.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD%s%04d", now.Format("20060102"), rand.Intn(10000))
}
