package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type paymentRepository struct {
	q querier
}

const paymentColumns = `
	id, order_id, method, amount, status,
	payment_key, transaction_id, paid_at, refund_amount, refunded_at,
	created_at, updated_at
`

func (r *paymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		payment.ID, payment.OrderID, string(payment.Method), payment.Amount, string(payment.Status),
		payment.PaymentKey, payment.TransactionID, payment.PaidAt,
		nullDecimal(payment.RefundAmount), payment.RefundedAt,
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPaymentExists
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (domain.Payment, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	return r.getBy(ctx, `WHERE order_id = $1`, orderID)
}

func (r *paymentRepository) GetByOrderNumber(ctx context.Context, number string) (domain.Payment, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = (SELECT id FROM orders WHERE order_number = $1)
	`, number)
	return r.scan(row)
}

func (r *paymentRepository) Save(ctx context.Context, payment domain.Payment) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    payment_key = $3,
		    transaction_id = $4,
		    paid_at = $5,
		    refund_amount = $6,
		    refunded_at = $7,
		    updated_at = $8
		WHERE id = $1
	`,
		payment.ID, string(payment.Status),
		payment.PaymentKey, payment.TransactionID, payment.PaidAt,
		nullDecimal(payment.RefundAmount), payment.RefundedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *paymentRepository) getBy(ctx context.Context, where string, arg any) (domain.Payment, error) {
	return r.scan(r.q.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments `+where, arg))
}

func (r *paymentRepository) scan(row *sql.Row) (domain.Payment, error) {
	var (
		payment      domain.Payment
		method       string
		status       string
		paidAt       sql.NullTime
		refundAmount decimal.NullDecimal
		refundedAt   sql.NullTime
	)
	err := row.Scan(
		&payment.ID, &payment.OrderID, &method, &payment.Amount, &status,
		&payment.PaymentKey, &payment.TransactionID, &paidAt, &refundAmount, &refundedAt,
		&payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}
	payment.Method = domain.PaymentMethod(method)
	payment.Status = domain.PaymentStatus(status)
	if paidAt.Valid {
		payment.PaidAt = &paidAt.Time
	}
	if refundAmount.Valid {
		payment.RefundAmount = refundAmount.Decimal
	}
	if refundedAt.Valid {
		payment.RefundedAt = &refundedAt.Time
	}
	return payment, nil
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	if d.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
