package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж создан вместе с заказом, подтверждения ещё не было.
	PaymentStatusPending PaymentStatus = "PENDING"
	// PaymentStatusCompleted — шлюз подтвердил списание.
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	// PaymentStatusRefunded — деньги возвращены клиенту (терминальный статус).
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	// PaymentStatusFailed — подтверждение не удалось (терминальный статус, только из PENDING).
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// PaymentMethod — способ оплаты, зафиксированный при создании платежа.
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
)

// Payment — ровно один платёж на заказ (1:1, уникальность по order_id).
// Amount выставляется один раз при создании и равен сумме заказа;
// RefundAmount выставляется ровно один раз при возврате и равен Amount
// (частичные возвраты в этой модели не поддерживаются).
type Payment struct {
	ID      string
	OrderID string
	Method  PaymentMethod
	Amount  decimal.Decimal
	Status  PaymentStatus

	// Корреляция с внешним шлюзом; пустые до подтверждения.
	PaymentKey    string
	TransactionID string

	PaidAt       *time.Time
	RefundAmount decimal.Decimal
	RefundedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Complete фиксирует подтверждение платежа шлюзом.
func (p *Payment) Complete(paymentKey, transactionID string) error {
	if p.Status == PaymentStatusCompleted {
		return ErrPaymentAlreadyCompleted
	}
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("%w: cannot complete payment in status %s", ErrInvalidState, p.Status)
	}
	now := time.Now().UTC()
	p.Status = PaymentStatusCompleted
	p.PaymentKey = paymentKey
	p.TransactionID = transactionID
	p.PaidAt = &now
	return nil
}

// Fail помечает платёж неуспешным; допустимо только из PENDING.
func (p *Payment) Fail() error {
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("%w: cannot fail payment in status %s", ErrInvalidState, p.Status)
	}
	p.Status = PaymentStatusFailed
	return nil
}

// Refund переводит платёж в REFUNDED и выставляет RefundAmount = Amount.
// Повторный возврат отклоняется.
func (p *Payment) Refund() error {
	if p.Status == PaymentStatusRefunded {
		return ErrPaymentAlreadyRefunded
	}
	if p.Status == PaymentStatusFailed {
		return fmt.Errorf("%w: cannot refund failed payment", ErrInvalidState)
	}
	now := time.Now().UTC()
	p.Status = PaymentStatusRefunded
	p.RefundAmount = p.Amount
	p.RefundedAt = &now
	return nil
}

// Validate проверяет корректность полей платежа.
func (p *Payment) Validate() []error {
	var errs []error
	if p.OrderID == "" {
		errs = append(errs, fmt.Errorf("%w: order_id is required", ErrInvalidInput))
	}
	if p.Method == "" {
		errs = append(errs, fmt.Errorf("%w: payment method is required", ErrInvalidInput))
	}
	if p.Amount.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: payment amount must be non-negative", ErrInvalidInput))
	}
	return errs
}
