package domain

import "context"

// ProductRepository описывает требования к хранилищу товаров (складская книга).
type ProductRepository interface {
	// Create сохраняет новый товар.
	Create(ctx context.Context, product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// DecreaseStock атомарно списывает qty под эксклюзивной блокировкой строки
	// и возвращает товар после списания (для снапшота цены и имени).
	// ErrOutOfStock при нехватке остатка, ErrProductNotFound для
	// отсутствующего или неактивного товара.
	DecreaseStock(ctx context.Context, productID string, qty int32) (Product, error)
	// IncreaseStock безусловно возвращает qty на остаток.
	IncreaseStock(ctx context.Context, productID string, qty int32) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями.
	// ErrOrderNumberTaken при коллизии номера заказа.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// GetByNumber возвращает заказ по человекочитаемому номеру.
	GetByNumber(ctx context.Context, number string) (Order, error)
	// GetForUpdate возвращает заказ под эксклюзивной блокировкой строки.
	// Сериализует конкурирующие мутации одного заказа (оплата, отмена, клеймы).
	GetForUpdate(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// Save применяет изменения статуса заказа. Позиции неизменяемы.
	Save(ctx context.Context, order Order) error
}

// PaymentRepository описывает требования к хранилищу платежей.
type PaymentRepository interface {
	// Create сохраняет платёж; ErrPaymentExists при втором платеже на заказ.
	Create(ctx context.Context, payment Payment) error
	// Get возвращает платёж или ErrPaymentNotFound.
	Get(ctx context.Context, id string) (Payment, error)
	// GetByOrderID возвращает платёж заказа.
	GetByOrderID(ctx context.Context, orderID string) (Payment, error)
	// GetByOrderNumber возвращает платёж по номеру заказа (путь подтверждения от шлюза).
	GetByOrderNumber(ctx context.Context, orderNumber string) (Payment, error)
	// Save применяет изменения платежа.
	Save(ctx context.Context, payment Payment) error
}

// ClaimRepository описывает требования к хранилищу клеймов.
type ClaimRepository interface {
	// Create сохраняет клейм вместе с позициями.
	Create(ctx context.Context, claim Claim) error
	// Get возвращает клейм с позициями или ErrClaimNotFound.
	Get(ctx context.Context, id string) (Claim, error)
	// ListByUser возвращает клеймы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]Claim, error)
	// SumClaimedQty возвращает суммарное количество по позиции заказа во всех
	// не-REJECTED клеймах. Используется для анти-double-claim проверки и
	// обязан выполняться в той же транзакции, что и вставка клейма.
	SumClaimedQty(ctx context.Context, orderItemID string) (int32, error)
	// Save применяет изменения клейма.
	Save(ctx context.Context, claim Claim) error
	// Delete удаляет клейм вместе с позициями (отзыв в статусе RECEIVED).
	Delete(ctx context.Context, id string) error
}
