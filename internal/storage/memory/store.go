package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// state — всё содержимое in-memory хранилища.
type state struct {
	products map[string]domain.Product
	orders   map[string]domain.Order
	payments map[string]domain.Payment
	claims   map[string]domain.Claim
	outbox   map[string]*outboxRecord
}

func newState() *state {
	return &state{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		payments: make(map[string]domain.Payment),
		claims:   make(map[string]domain.Claim),
		outbox:   make(map[string]*outboxRecord),
	}
}

// clone делает глубокую копию состояния для snapshot-отката транзакции.
func (s *state) clone() *state {
	c := newState()
	for id, p := range s.products {
		c.products[id] = p
	}
	for id, o := range s.orders {
		o.Items = append([]domain.OrderItem(nil), o.Items...)
		c.orders[id] = o
	}
	for id, p := range s.payments {
		c.payments[id] = p
	}
	for id, cl := range s.claims {
		cl.Items = append([]domain.ClaimItem(nil), cl.Items...)
		c.claims[id] = cl
	}
	for id, rec := range s.outbox {
		recCopy := *rec
		c.outbox[id] = &recCopy
	}
	return c
}

// Store — in-memory реализация domain.UnitOfWork для тестов и локальных
// запусков. Один глобальный мьютекс сериализует все транзакции, поэтому
// внутритранзакционные проверки (остатки, анти-double-claim) не гоняются
// между собой так же, как при row-level блокировках в PostgreSQL.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Within выполняет fn атомарно: при ошибке состояние откатывается к снапшоту.
func (s *Store) Within(ctx context.Context, fn func(tx domain.RepositorySet) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&repositorySet{state: s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Outbox возвращает потокобезопасный handle для outbox worker'а,
// работающий вне границ Within.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxHandle{store: s}
}

// repositorySet отдаёт репозитории поверх состояния текущей транзакции.
// Методы не берут мьютекс: он уже удерживается Within.
type repositorySet struct {
	state *state
}

func (r *repositorySet) Products() domain.ProductRepository { return &productRepository{r.state} }
func (r *repositorySet) Orders() domain.OrderRepository     { return &orderRepository{r.state} }
func (r *repositorySet) Payments() domain.PaymentRepository { return &paymentRepository{r.state} }
func (r *repositorySet) Claims() domain.ClaimRepository     { return &claimRepository{r.state} }
func (r *repositorySet) Outbox() domain.OutboxRepository    { return &outboxRepository{r.state} }

var _ domain.UnitOfWork = (*Store)(nil)
var _ domain.RepositorySet = (*repositorySet)(nil)
