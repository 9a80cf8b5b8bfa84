package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus описывает доступность товара в каталоге.
type ProductStatus string

const (
	// ProductStatusActive — товар доступен для заказа.
	ProductStatusActive ProductStatus = "ACTIVE"
	// ProductStatusInactive — товар снят с продажи; заказы по нему отклоняются.
	ProductStatusInactive ProductStatus = "INACTIVE"
)

// Product — товар с точки зрения складской книги (inventory ledger).
// Остаток мутируется только через DecreaseStock/IncreaseStock; инвариант stock >= 0.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int32
	Status    ProductStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active сообщает, доступен ли товар для заказа.
func (p *Product) Active() bool {
	return p.Status == ProductStatusActive
}

// DecreaseStock списывает qty единиц, отклоняя уход в минус.
// Вызывающая сторона обязана держать эксклюзивную блокировку строки товара.
func (p *Product) DecreaseStock(qty int32) error {
	if qty <= 0 {
		return ErrInvalidInput
	}
	if p.Stock < qty {
		return ErrOutOfStock
	}
	p.Stock -= qty
	return nil
}

// IncreaseStock возвращает qty единиц на остаток. Верхней границы нет:
// восстановление доверяет вызывающей стороне.
func (p *Product) IncreaseStock(qty int32) error {
	if qty <= 0 {
		return ErrInvalidInput
	}
	p.Stock += qty
	return nil
}
