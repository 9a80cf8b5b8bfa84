package memory

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// outboxRepository — транзакционный view outbox'а внутри Within.
type outboxRepository struct {
	state *state
}

// Enqueue сохраняет событие со статусом `pending` в рамках текущей транзакции.
func (r *outboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.state.outbox[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    "pending",
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	return pullPending(r.state, limit), nil
}

func (r *outboxRepository) Stats() (domain.OutboxStats, error) {
	return outboxStats(r.state), nil
}

func (r *outboxRepository) MarkSent(id string) error {
	return markStatus(r.state, id, "sent")
}

func (r *outboxRepository) MarkFailed(id string) error {
	return markStatus(r.state, id, "failed")
}

// outboxHandle — потокобезопасный доступ к outbox для worker'а вне Within.
type outboxHandle struct {
	store *Store
}

func (h *outboxHandle) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return (&outboxRepository{h.store.state}).Enqueue(msg)
}

func (h *outboxHandle) PullPending(limit int) ([]domain.OutboxMessage, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return pullPending(h.store.state, limit), nil
}

func (h *outboxHandle) Stats() (domain.OutboxStats, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return outboxStats(h.store.state), nil
}

func (h *outboxHandle) MarkSent(id string) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return markStatus(h.store.state, id, "sent")
}

func (h *outboxHandle) MarkFailed(id string) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return markStatus(h.store.state, id, "failed")
}

func pullPending(st *state, limit int) []domain.OutboxMessage {
	if limit <= 0 {
		limit = 100
	}

	records := make([]*outboxRecord, 0)
	for _, rec := range st.outbox {
		if rec.status == "pending" {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].createdAt.Equal(records[j].createdAt) {
			return records[i].createdAt.Before(records[j].createdAt)
		}
		return records[i].msg.ID < records[j].msg.ID
	})

	result := make([]domain.OutboxMessage, 0, limit)
	for _, rec := range records {
		result = append(result, rec.msg)
		if len(result) >= limit {
			break
		}
	}
	return result
}

func outboxStats(st *state) domain.OutboxStats {
	var stats domain.OutboxStats
	for _, rec := range st.outbox {
		if rec.status != "pending" {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats
}

func markStatus(st *state, id, status string) error {
	rec, ok := st.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	rec.status = status
	rec.attemptCnt++
	rec.updatedAt = time.Now().UTC()
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
var _ domain.OutboxRepository = (*outboxHandle)(nil)
