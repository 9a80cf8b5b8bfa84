package kafka

import "time"

// EventType определяет тип доменного события.
type EventType string

const (
	// Order события
	EventTypeOrderCreated  EventType = "order.created"
	EventTypeOrderPaid     EventType = "order.paid"
	EventTypeOrderCanceled EventType = "order.canceled"

	// Payment события
	EventTypePaymentConfirmed EventType = "payment.confirmed"
	EventTypePaymentFailed    EventType = "payment.failed"
	EventTypePaymentRefunded  EventType = "payment.refunded"

	// Claim события
	EventTypeClaimCreated   EventType = "claim.created"
	EventTypeClaimCompleted EventType = "claim.completed"
	EventTypeClaimRejected  EventType = "claim.rejected"
	EventTypeClaimWithdrawn EventType = "claim.withdrawn"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "shop.order.events"
	TopicClaimEvents     = "shop.claim.events"
	TopicDeadLetterQueue = "shop.dlq"
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent — событие жизненного цикла заказа.
type OrderEvent struct {
	EventType   EventType      `json:"event_type"`
	OrderID     string         `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	UserID      string         `json:"user_id"`
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ClaimEvent — событие жизненного цикла клейма.
type ClaimEvent struct {
	EventType EventType      `json:"event_type"`
	ClaimID   string         `json:"claim_id"`
	OrderID   string         `json:"order_id"`
	UserID    string         `json:"user_id"`
	ClaimType string         `json:"claim_type"`
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewOrderEvent создаёт событие заказа с текущей меткой времени.
func NewOrderEvent(eventType EventType, orderID, orderNumber, userID, status string) *OrderEvent {
	return &OrderEvent{
		EventType:   eventType,
		OrderID:     orderID,
		OrderNumber: orderNumber,
		UserID:      userID,
		Status:      status,
		Timestamp:   time.Now().UTC(),
	}
}

// NewClaimEvent создаёт событие клейма с текущей меткой времени.
func NewClaimEvent(eventType EventType, claimID, orderID, userID, claimType, status string) *ClaimEvent {
	return &ClaimEvent{
		EventType: eventType,
		ClaimID:   claimID,
		OrderID:   orderID,
		UserID:    userID,
		ClaimType: claimType,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}
