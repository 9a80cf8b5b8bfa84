package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type claimRepository struct {
	q querier
}

const claimColumns = `
	id, order_id, user_id, claim_type, status, reason, note,
	refund_amount, refund_method, bank_name, account_number,
	completed_at, created_at, updated_at
`

func (r *claimRepository) Create(ctx context.Context, claim domain.Claim) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO claims (`+claimColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		claim.ID, claim.OrderID, claim.UserID, string(claim.Type), string(claim.Status),
		claim.Reason, claim.Note,
		nullDecimal(claim.RefundAmount), claim.RefundMethod, claim.BankName, claim.AccountNumber,
		claim.CompletedAt, claim.CreatedAt, claim.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}

	for _, item := range claim.Items {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO claim_items (id, claim_id, order_item_id, product_name, qty)
			VALUES ($1,$2,$3,$4,$5)
		`, item.ID, claim.ID, item.OrderItemID, item.ProductName, item.Qty); err != nil {
			return fmt.Errorf("insert claim item: %w", err)
		}
	}
	return nil
}

func (r *claimRepository) Get(ctx context.Context, id string) (domain.Claim, error) {
	claim, err := r.scan(r.q.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM claims WHERE id = $1`, id))
	if err != nil {
		return domain.Claim{}, err
	}
	items, err := r.loadItems(ctx, claim.ID)
	if err != nil {
		return domain.Claim{}, err
	}
	claim.Items = items
	return claim, nil
}

func (r *claimRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Claim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM claims
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.q.QueryContext(ctx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.q.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	claims := make([]domain.Claim, 0)
	for rows.Next() {
		claim, err := r.scanRows(rows)
		if err != nil {
			return nil, err
		}
		items, err := r.loadItems(ctx, claim.ID)
		if err != nil {
			return nil, err
		}
		claim.Items = items
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim rows: %w", err)
	}
	return claims, nil
}

// SumClaimedQty считает уже заявленное количество по позиции заказа,
// отклонённые клеймы не учитываются.
func (r *claimRepository) SumClaimedQty(ctx context.Context, orderItemID string) (int32, error) {
	var total int32
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(ci.qty), 0)
		FROM claim_items ci
		JOIN claims c ON c.id = ci.claim_id
		WHERE ci.order_item_id = $1
		  AND c.status <> 'REJECTED'
	`, orderItemID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum claimed qty: %w", err)
	}
	return total, nil
}

func (r *claimRepository) Save(ctx context.Context, claim domain.Claim) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE claims
		SET status = $2,
		    note = $3,
		    refund_amount = $4,
		    completed_at = $5,
		    updated_at = $6
		WHERE id = $1
	`,
		claim.ID, string(claim.Status), claim.Note,
		nullDecimal(claim.RefundAmount), claim.CompletedAt, claim.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrClaimNotFound
	}
	return nil
}

func (r *claimRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM claims WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrClaimNotFound
	}
	return nil
}

func (r *claimRepository) loadItems(ctx context.Context, claimID string) ([]domain.ClaimItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_item_id, product_name, qty
		FROM claim_items
		WHERE claim_id = $1
		ORDER BY id ASC
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("load claim items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ClaimItem, 0)
	for rows.Next() {
		var item domain.ClaimItem
		if err := rows.Scan(&item.ID, &item.OrderItemID, &item.ProductName, &item.Qty); err != nil {
			return nil, fmt.Errorf("scan claim item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim items: %w", err)
	}
	return items, nil
}

func (r *claimRepository) scan(row *sql.Row) (domain.Claim, error) {
	var (
		claim        domain.Claim
		claimType    string
		status       string
		refundMethod sql.NullString
		refundAmount decimal.NullDecimal
		bankName     sql.NullString
		accountNum   sql.NullString
		completedAt  sql.NullTime
	)
	err := row.Scan(
		&claim.ID, &claim.OrderID, &claim.UserID, &claimType, &status,
		&claim.Reason, &claim.Note,
		&refundAmount, &refundMethod, &bankName, &accountNum,
		&completedAt, &claim.CreatedAt, &claim.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, domain.ErrClaimNotFound
		}
		return domain.Claim{}, fmt.Errorf("select claim: %w", err)
	}
	fillClaim(&claim, claimType, status, refundMethod, refundAmount, bankName, accountNum, completedAt)
	return claim, nil
}

func (r *claimRepository) scanRows(rows *sql.Rows) (domain.Claim, error) {
	var (
		claim        domain.Claim
		claimType    string
		status       string
		refundMethod sql.NullString
		refundAmount decimal.NullDecimal
		bankName     sql.NullString
		accountNum   sql.NullString
		completedAt  sql.NullTime
	)
	if err := rows.Scan(
		&claim.ID, &claim.OrderID, &claim.UserID, &claimType, &status,
		&claim.Reason, &claim.Note,
		&refundAmount, &refundMethod, &bankName, &accountNum,
		&completedAt, &claim.CreatedAt, &claim.UpdatedAt,
	); err != nil {
		return domain.Claim{}, fmt.Errorf("scan claim row: %w", err)
	}
	fillClaim(&claim, claimType, status, refundMethod, refundAmount, bankName, accountNum, completedAt)
	return claim, nil
}

func fillClaim(
	claim *domain.Claim,
	claimType, status string,
	refundMethod sql.NullString,
	refundAmount decimal.NullDecimal,
	bankName, accountNum sql.NullString,
	completedAt sql.NullTime,
) {
	claim.Type = domain.ClaimType(claimType)
	claim.Status = domain.ClaimStatus(status)
	if refundAmount.Valid {
		claim.RefundAmount = refundAmount.Decimal
	}
	if refundMethod.Valid {
		claim.RefundMethod = refundMethod.String
	}
	if bankName.Valid {
		claim.BankName = bankName.String
	}
	if accountNum.Valid {
		claim.AccountNumber = accountNum.String
	}
	if completedAt.Valid {
		claim.CompletedAt = &completedAt.Time
	}
}

var _ domain.ClaimRepository = (*claimRepository)(nil)
