package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CartService описывает корзину как внешний collaborator: после оформления
// заказа корзина пользователя очищается целиком, результат не проверяется.
type CartService interface {
	ClearCart(ctx context.Context, userID string) error
}

// GatewayConfirmRequest — параметры подтверждения платежа во внешнем шлюзе.
type GatewayConfirmRequest struct {
	PaymentKey  string
	OrderNumber string
	Amount      decimal.Decimal
	// IdempotencyKey стабилен для заказа, чтобы повторные сетевые вызовы
	// не приводили к двойному списанию.
	IdempotencyKey string
}

// PaymentGateway описывает внешний платёжный шлюз (подтверждение и отмена).
// Ошибки шлюза с машиночитаемым кодом возвращаются как *GatewayError.
type PaymentGateway interface {
	Confirm(ctx context.Context, req GatewayConfirmRequest) error
	Cancel(ctx context.Context, paymentKey, reason, idempotencyKey string) error
}

// UnitOfWork выполняет fn в границах одной атомарной транзакции: либо все
// изменения внутри fn фиксируются, либо ни одно из них не становится видимым.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(tx RepositorySet) error) error
}

// RepositorySet — репозитории, разделяющие одну транзакцию.
type RepositorySet interface {
	Products() ProductRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Claims() ClaimRepository
	Outbox() OutboxRepository
}

// OutboxPublisher публикует события из transactional outbox; должен быть идемпотентным.
type OutboxPublisher interface {
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
