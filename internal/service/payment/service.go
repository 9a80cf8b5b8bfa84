package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// ConfirmRequest — подтверждение платежа по callback от платёжной страницы.
type ConfirmRequest struct {
	PaymentKey  string
	OrderNumber string
	Amount      decimal.Decimal
}

// Service подтверждает и отменяет платежи, координируясь с внешним шлюзом.
//
// Вызов шлюза — сетевая операция и выполняется между двумя локальными
// транзакциями: валидация до вызова, финальный переход после. Повторные
// вызовы безопасны за счёт ключа идемпотентности и short-circuit по
// уже завершённому платежу.
type Service struct {
	uow     domain.UnitOfWork
	gateway domain.PaymentGateway
	logger  *log.Entry
	metrics *metrics.ShopMetrics
}

// NewService создаёт платёжный сервис.
func NewService(uow domain.UnitOfWork, gateway domain.PaymentGateway, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "payment")
	}
	return &Service{
		uow:     uow,
		gateway: gateway,
		logger:  logger,
		metrics: metrics.NewShopMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(uow domain.UnitOfWork, gateway domain.PaymentGateway, logger *log.Entry) *Service {
	svc := NewService(uow, gateway, logger)
	svc.metrics = nil
	return svc
}

// Confirm подтверждает платёж: локальная валидация, вызов шлюза, затем
// финальный переход payment → COMPLETED и order → PAID одной транзакцией.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (domain.Payment, error) {
	payment, done, err := s.validateConfirm(ctx, req)
	if err != nil {
		s.recordConfirm(confirmResult(err))
		return domain.Payment{}, err
	}
	if done {
		// уже COMPLETED: безопасный повтор возвращает успех без побочных эффектов
		s.recordConfirm("already_completed")
		return payment, nil
	}

	start := time.Now()
	gatewayErr := s.gateway.Confirm(ctx, domain.GatewayConfirmRequest{
		PaymentKey:     req.PaymentKey,
		OrderNumber:    req.OrderNumber,
		Amount:         req.Amount,
		IdempotencyKey: req.OrderNumber,
	})
	if s.metrics != nil {
		s.metrics.RecordGatewayDuration("confirm", time.Since(start))
	}
	if gatewayErr != nil {
		s.failPayment(ctx, payment.ID)
		s.recordConfirm("gateway_failed")
		s.logger.WithError(gatewayErr).WithField("order_number", req.OrderNumber).Error("gateway confirm failed")
		return domain.Payment{}, gatewayErr
	}

	completed, err := s.completeConfirm(ctx, payment.ID, req.PaymentKey)
	if err != nil {
		s.recordConfirm("completion_failed")
		return domain.Payment{}, err
	}

	s.recordConfirm("success")
	s.logger.WithFields(log.Fields{
		"payment_id":   completed.ID,
		"order_number": req.OrderNumber,
		"amount":       completed.Amount.String(),
	}).Info("payment confirmed")

	return completed, nil
}

// validateConfirm выполняет локальные проверки до обращения к шлюзу.
// done=true означает идемпотентный повтор по уже завершённому платежу.
func (s *Service) validateConfirm(ctx context.Context, req ConfirmRequest) (payment domain.Payment, done bool, err error) {
	if req.PaymentKey == "" || req.OrderNumber == "" {
		return domain.Payment{}, false, fmt.Errorf("%w: payment key and order number are required", domain.ErrInvalidInput)
	}

	err = s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Payments().GetByOrderNumber(ctx, req.OrderNumber)
		if err != nil {
			return err
		}
		order, err := tx.Orders().Get(ctx, loaded.OrderID)
		if err != nil {
			return err
		}
		payment = loaded

		if loaded.Status == domain.PaymentStatusCompleted {
			done = true
			return nil
		}

		if order.Status == domain.OrderStatusCancelled {
			if failErr := loaded.Fail(); failErr == nil {
				loaded.UpdatedAt = time.Now().UTC()
				if saveErr := tx.Payments().Save(ctx, loaded); saveErr != nil {
					return saveErr
				}
			}
			return domain.ErrOrderAlreadyCancelled
		}

		// точное десятичное сравнение, без float и без округления
		if !req.Amount.Equal(loaded.Amount) {
			return fmt.Errorf("%w: claimed %s, payment %s",
				domain.ErrPaymentAmountMismatch, req.Amount.String(), loaded.Amount.String())
		}
		if !req.Amount.Equal(order.TotalPrice) {
			return fmt.Errorf("%w: claimed %s, order total %s",
				domain.ErrPaymentAmountMismatch, req.Amount.String(), order.TotalPrice.String())
		}
		return nil
	})
	if err != nil {
		return domain.Payment{}, false, err
	}
	return payment, done, nil
}

// completeConfirm фиксирует COMPLETED/PAID после успешного ответа шлюза.
func (s *Service) completeConfirm(ctx context.Context, paymentID, paymentKey string) (domain.Payment, error) {
	var completed domain.Payment
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		payment, err := tx.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		order, err := tx.Orders().GetForUpdate(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		// перечитываем платёж уже под блокировкой заказа: параллельный
		// confirm мог завершить его, пока мы ждали строку
		payment, err = tx.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}

		if payment.Status == domain.PaymentStatusCompleted {
			completed = payment
			return nil
		}

		if err := payment.Complete(paymentKey, paymentKey); err != nil {
			return err
		}
		payment.UpdatedAt = time.Now().UTC()
		if err := tx.Payments().Save(ctx, payment); err != nil {
			return err
		}

		if err := order.MarkPaid(); err != nil {
			return err
		}
		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, order); err != nil {
			return err
		}

		if err := enqueuePaymentEvent(tx, kafka.EventTypePaymentConfirmed, payment, order); err != nil {
			return err
		}
		if err := enqueueOrderPaidEvent(tx, order); err != nil {
			return err
		}

		completed = payment
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return completed, nil
}

// failPayment переводит платёж в FAILED после отказа шлюза; платёж не должен
// зависнуть в PENDING навсегда. Ошибка логируется и не затирает исходную.
func (s *Service) failPayment(ctx context.Context, paymentID string) {
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		payment, err := tx.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if failErr := payment.Fail(); failErr != nil {
			return nil
		}
		payment.UpdatedAt = time.Now().UTC()
		if err := tx.Payments().Save(ctx, payment); err != nil {
			return err
		}
		order, err := tx.Orders().Get(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		return enqueuePaymentEvent(tx, kafka.EventTypePaymentFailed, payment, order)
	})
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).Warn("failed to mark payment as failed")
	}
}

// Cancel отменяет подтверждённый платёж через шлюз и фиксирует REFUNDED
// локально только после успешного ответа шлюза. Ключ идемпотентности
// отмены живёт в отдельном неймспейсе от ключа подтверждения.
func (s *Service) Cancel(ctx context.Context, paymentID, reason string) (domain.Payment, error) {
	var (
		paymentKey  string
		orderNumber string
	)
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		payment, err := tx.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == domain.PaymentStatusRefunded {
			return domain.ErrPaymentAlreadyRefunded
		}
		order, err := tx.Orders().Get(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		paymentKey = payment.PaymentKey
		orderNumber = order.Number
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	start := time.Now()
	gatewayErr := s.gateway.Cancel(ctx, paymentKey, reason, "cancel_"+orderNumber)
	if s.metrics != nil {
		s.metrics.RecordGatewayDuration("cancel", time.Since(start))
	}
	if gatewayErr != nil {
		s.logger.WithError(gatewayErr).WithField("payment_id", paymentID).Error("gateway cancel failed")
		return domain.Payment{}, gatewayErr
	}

	var refunded domain.Payment
	err = s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		payment, err := tx.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := payment.Refund(); err != nil {
			return err
		}
		payment.UpdatedAt = time.Now().UTC()
		if err := tx.Payments().Save(ctx, payment); err != nil {
			return err
		}
		order, err := tx.Orders().Get(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if err := enqueuePaymentEvent(tx, kafka.EventTypePaymentRefunded, payment, order); err != nil {
			return err
		}
		refunded = payment
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.logger.WithFields(log.Fields{
		"payment_id":   refunded.ID,
		"order_number": orderNumber,
	}).Info("payment refunded")

	return refunded, nil
}

// GetByOrder возвращает платёж заказа; чужие заказы неотличимы от отсутствующих.
func (s *Service) GetByOrder(ctx context.Context, userID, orderID string) (domain.Payment, error) {
	var payment domain.Payment
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return domain.ErrOrderNotFound
		}
		loaded, err := tx.Payments().GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		payment = loaded
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// UserMessage переводит ошибку подтверждения в безопасную строку для
// пользователя. Сырой текст шлюза остаётся только в логах.
func UserMessage(err error) string {
	if gatewayErr, ok := domain.AsGatewayError(err); ok {
		if msg, found := gatewayUserMessages[gatewayErr.Code]; found {
			return msg
		}
		return "Payment was rejected by the payment provider. Please try again."
	}
	switch {
	case errors.Is(err, domain.ErrPaymentAmountMismatch):
		return "Payment amount does not match the order total."
	case errors.Is(err, domain.ErrOrderAlreadyCancelled):
		return "This order has been cancelled and can no longer be paid."
	case errors.Is(err, domain.ErrGatewayConfirmFailed):
		return "Payment confirmation failed. Please try again."
	case errors.Is(err, domain.ErrGatewayCancelFailed):
		return "Payment cancellation failed. Please contact support."
	default:
		return "Payment processing failed. Please try again later."
	}
}

// Известные коды шлюза и их безопасные сообщения.
var gatewayUserMessages = map[string]string{
	"PROVIDER_ERROR":                 "The payment provider is temporarily unavailable. Please try again.",
	"INVALID_REQUEST":                "Invalid payment request.",
	"INVALID_API_KEY":                "Payment configuration error. Please contact support.",
	"INVALID_REJECT_CARD":            "The card was declined. Please use a different card.",
	"BELOW_MINIMUM_AMOUNT":           "The payment amount is below the minimum allowed.",
	"INVALID_CARD_EXPIRATION":        "The card expiration date is invalid.",
	"INVALID_STOPPED_CARD":           "The card is suspended and cannot be used.",
	"EXCEED_MAX_DAILY_PAYMENT_COUNT": "Daily payment limit exceeded.",
	"NOT_AVAILABLE_BANK":             "The selected bank is temporarily unavailable.",
	"INVALID_PASSWORD":               "Payment authentication failed.",
	"FDS_ERROR":                      "The payment was blocked by the fraud detection system.",
	"REJECT_CARD_COMPANY":            "The card issuer rejected the payment.",
}

func (s *Service) recordConfirm(result string) {
	if s.metrics != nil {
		s.metrics.RecordPaymentConfirm(result)
	}
}

func confirmResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrPaymentAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, domain.ErrOrderAlreadyCancelled):
		return "order_cancelled"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "invalid"
	}
}

func enqueuePaymentEvent(tx domain.RepositorySet, eventType kafka.EventType, payment domain.Payment, order domain.Order) error {
	payload, err := json.Marshal(map[string]any{
		"event_type":   string(eventType),
		"payment_id":   payment.ID,
		"order_id":     order.ID,
		"order_number": order.Number,
		"status":       string(payment.Status),
		"amount":       payment.Amount.String(),
		"timestamp":    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	_, err = tx.Outbox().Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	})
	return err
}

func enqueueOrderPaidEvent(tx domain.RepositorySet, order domain.Order) error {
	payload, err := json.Marshal(kafka.NewOrderEvent(kafka.EventTypeOrderPaid, order.ID, order.Number, order.UserID, string(order.Status)))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	_, err = tx.Outbox().Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(kafka.EventTypeOrderPaid),
		Payload:       payload,
	})
	return err
}
