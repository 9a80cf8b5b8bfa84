package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClaimType — вид клейма: отмена до отгрузки или возврат после доставки.
type ClaimType string

const (
	ClaimTypeCancel ClaimType = "CANCEL"
	ClaimTypeReturn ClaimType = "RETURN"
)

// ClaimStatus описывает жизненный цикл клейма.
type ClaimStatus string

const (
	// ClaimStatusReceived — клейм принят; единственный статус, из которого возможен отзыв.
	ClaimStatusReceived ClaimStatus = "RECEIVED"
	// ClaimStatusProcessing — клейм в обработке оператором.
	ClaimStatusProcessing ClaimStatus = "PROCESSING"
	// ClaimStatusPickup — назначен забор товара у покупателя.
	ClaimStatusPickup ClaimStatus = "PICKUP"
	// ClaimStatusPickedUp — товар забран, ожидает проверки.
	ClaimStatusPickedUp ClaimStatus = "PICKED_UP"
	// ClaimStatusCompleted — возврат/отмена завершены (терминальный статус).
	ClaimStatusCompleted ClaimStatus = "COMPLETED"
	// ClaimStatusRejected — клейм отклонён (терминальный статус).
	ClaimStatusRejected ClaimStatus = "REJECTED"
)

// Terminal сообщает, является ли статус конечным.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimStatusCompleted || s == ClaimStatusRejected
}

// claimFlow задаёт единственный допустимый путь ручной обработки возврата.
var claimFlow = map[ClaimStatus]ClaimStatus{
	ClaimStatusReceived:   ClaimStatusProcessing,
	ClaimStatusProcessing: ClaimStatusPickup,
	ClaimStatusPickup:     ClaimStatusPickedUp,
	ClaimStatusPickedUp:   ClaimStatusCompleted,
}

// ClaimItem — позиция клейма; ссылается на позицию заказа по id и несёт
// денормализованное имя товара на момент заказа.
type ClaimItem struct {
	ID          string
	OrderItemID string
	ProductName string
	Qty         int32
}

// Claim — запрос на отмену или возврат по заказу, единица обработки
// возврата денег и восстановления остатков. Позиции принадлежат клейму
// эксклюзивно и живут только вместе с ним.
type Claim struct {
	ID      string
	OrderID string
	UserID  string

	Type   ClaimType
	Status ClaimStatus
	Reason string
	Note   string

	RefundAmount decimal.Decimal
	RefundMethod string

	// Реквизиты для возврата деньгами при RETURN.
	BankName      string
	AccountNumber string

	Items       []ClaimItem
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Advance переводит клейм на следующий шаг ручной обработки
// (RECEIVED → PROCESSING → PICKUP → PICKED_UP → COMPLETED).
func (c *Claim) Advance() error {
	next, ok := claimFlow[c.Status]
	if !ok {
		return fmt.Errorf("%w: cannot advance claim in status %s", ErrInvalidState, c.Status)
	}
	if next == ClaimStatusCompleted {
		return c.Complete()
	}
	c.Status = next
	return nil
}

// Complete завершает клейм. Финансовые эффекты (возврат платежа, отмена
// заказа, восстановление остатков) выполняет claim-движок, не сама сущность.
func (c *Claim) Complete() error {
	if c.Status.Terminal() {
		return fmt.Errorf("%w: claim already %s", ErrInvalidState, c.Status)
	}
	now := time.Now().UTC()
	c.Status = ClaimStatusCompleted
	c.CompletedAt = &now
	return nil
}

// Reject отклоняет клейм из любого нетерминального статуса.
// Количества отклонённых клеймов не учитываются в лимите повторных клеймов.
func (c *Claim) Reject(note string) error {
	if c.Status.Terminal() {
		return fmt.Errorf("%w: claim already %s", ErrInvalidState, c.Status)
	}
	c.Status = ClaimStatusRejected
	c.Note = note
	return nil
}

// EnsureWithdrawable проверяет, что клейм можно отозвать: только RECEIVED,
// пока никаких финансовых эффектов не произошло.
func (c *Claim) EnsureWithdrawable() error {
	if c.Status != ClaimStatusReceived {
		return fmt.Errorf("%w: only received claims can be withdrawn", ErrInvalidState)
	}
	return nil
}

// OrderStatusAllows проверяет совместимость статуса заказа с видом клейма:
// CANCEL — до отгрузки (CONFIRMED/PAID), RETURN — только после доставки.
func (t ClaimType) OrderStatusAllows(status OrderStatus) bool {
	switch t {
	case ClaimTypeCancel:
		return status == OrderStatusConfirmed || status == OrderStatusPaid
	case ClaimTypeReturn:
		return status == OrderStatusDelivered
	default:
		return false
	}
}

// Validate проверяет корректность полей клейма.
func (c *Claim) Validate() []error {
	var errs []error
	if c.OrderID == "" {
		errs = append(errs, fmt.Errorf("%w: order_id is required", ErrInvalidInput))
	}
	if c.UserID == "" {
		errs = append(errs, fmt.Errorf("%w: user_id is required", ErrInvalidInput))
	}
	if c.Type != ClaimTypeCancel && c.Type != ClaimTypeReturn {
		errs = append(errs, fmt.Errorf("%w: unknown claim type %q", ErrInvalidInput, c.Type))
	}
	if c.Reason == "" {
		errs = append(errs, fmt.Errorf("%w: reason is required", ErrInvalidInput))
	}
	if len(c.Items) == 0 {
		errs = append(errs, fmt.Errorf("%w: claim must contain at least one item", ErrInvalidInput))
	}
	for _, item := range c.Items {
		if item.Qty < 1 {
			errs = append(errs, fmt.Errorf("%w: claim item qty must be at least 1", ErrInvalidInput))
		}
	}
	if c.RefundAmount.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: refund amount must be non-negative", ErrInvalidInput))
	}
	return errs
}
