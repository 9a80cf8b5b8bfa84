package payment

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// MockGateway — конфигурируемая заглушка платёжного шлюза для тестов.
type MockGateway struct {
	mu sync.Mutex

	ConfirmErr error
	CancelErr  error

	ConfirmCalls    int
	CancelCalls     int
	LastConfirm     domain.GatewayConfirmRequest
	LastCancelKey   string
	LastCancelIdem  string
	LastCancelCause string
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// Confirm возвращает настроенный результат и запоминает последний запрос.
func (m *MockGateway) Confirm(_ context.Context, req domain.GatewayConfirmRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConfirmCalls++
	m.LastConfirm = req
	return m.ConfirmErr
}

// Cancel возвращает настроенный результат и запоминает параметры вызова.
func (m *MockGateway) Cancel(_ context.Context, paymentKey, reason, idempotencyKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CancelCalls++
	m.LastCancelKey = paymentKey
	m.LastCancelCause = reason
	m.LastCancelIdem = idempotencyKey
	return m.CancelErr
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
