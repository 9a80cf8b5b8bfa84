package cart

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// MockService — конфигурируемая заглушка CartService.
// Используется в тестах и в локальных запусках, пока корзина живёт
// в отдельном сервисе.
type MockService struct {
	mu sync.Mutex

	ClearErr error

	ClearCalls   int
	ClearedUsers []string
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{}
}

// ClearCart возвращает настроенный результат и считает вызовы.
func (m *MockService) ClearCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ClearCalls++
	m.ClearedUsers = append(m.ClearedUsers, userID)
	return m.ClearErr
}

var _ domain.CartService = (*MockService)(nil)
