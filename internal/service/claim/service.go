package claim

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// ItemRequest — заявляемая позиция: ссылка на позицию заказа и количество.
type ItemRequest struct {
	OrderItemID string
	Qty         int32
}

// CreateRequest — параметры создания клейма.
type CreateRequest struct {
	UserID  string
	OrderID string
	Type    domain.ClaimType
	Reason  string
	Items   []ItemRequest

	// Реквизиты возврата деньгами для RETURN.
	BankName      string
	AccountNumber string
}

// Service управляет клеймами: создание с проверкой лимита количества,
// завершение с возвратом денег и остатков, отзыв и административные переходы.
//
// Проверка "сколько уже заявлено" и вставка нового клейма выполняются под
// блокировкой строки заказа, поэтому два конкурирующих клейма не могут
// совместно превысить заказанное количество.
type Service struct {
	uow     domain.UnitOfWork
	logger  *log.Entry
	metrics *metrics.ShopMetrics
}

// NewService создаёт claim-сервис.
func NewService(uow domain.UnitOfWork, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "claim")
	}
	return &Service{
		uow:     uow,
		logger:  logger,
		metrics: metrics.NewShopMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(uow domain.UnitOfWork, logger *log.Entry) *Service {
	svc := NewService(uow, logger)
	svc.metrics = nil
	return svc
}

// Create создаёт клейм. CANCEL завершается немедленно (возврат денег, отмена
// заказа, восстановление остатков — той же транзакцией); RETURN остаётся в
// RECEIVED до административной обработки.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.Claim, error) {
	if err := validateCreate(req); err != nil {
		return domain.Claim{}, err
	}

	var claim domain.Claim
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		// блокировка заказа сериализует конкурирующие клеймы по нему
		order, err := tx.Orders().GetForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.UserID != req.UserID {
			return domain.ErrOrderNotFound
		}
		if !req.Type.OrderStatusAllows(order.Status) {
			return fmt.Errorf("%w: %s claim is not allowed for order in status %s",
				domain.ErrInvalidState, req.Type, order.Status)
		}

		refund := decimal.Zero
		items := make([]domain.ClaimItem, 0, len(req.Items))
		for _, itemReq := range req.Items {
			orderItem, ok := order.FindItem(itemReq.OrderItemID)
			if !ok {
				return fmt.Errorf("%w: order item %s does not belong to order %s",
					domain.ErrInvalidInput, itemReq.OrderItemID, order.ID)
			}

			claimed, err := tx.Claims().SumClaimedQty(ctx, orderItem.ID)
			if err != nil {
				return err
			}
			remaining := orderItem.Qty - claimed
			if itemReq.Qty > remaining {
				return fmt.Errorf("%w: requested %d of order item %s, only %d remaining claimable",
					domain.ErrInvalidInput, itemReq.Qty, orderItem.ID, remaining)
			}

			// возврат считается по снятой в заказ цене, не по каталогу
			refund = refund.Add(orderItem.PriceAtOrder.Mul(decimal.NewFromInt(int64(itemReq.Qty))))
			items = append(items, domain.ClaimItem{
				ID:          uuid.NewString(),
				OrderItemID: orderItem.ID,
				ProductName: orderItem.ProductName,
				Qty:         itemReq.Qty,
			})
		}

		payment, err := tx.Payments().GetByOrderID(ctx, order.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		claim = domain.Claim{
			ID:            uuid.NewString(),
			OrderID:       order.ID,
			UserID:        req.UserID,
			Type:          req.Type,
			Status:        domain.ClaimStatusReceived,
			Reason:        req.Reason,
			RefundAmount:  refund,
			RefundMethod:  string(payment.Method),
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			Items:         items,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if errs := claim.Validate(); len(errs) > 0 {
			return errs[0]
		}
		if err := tx.Claims().Create(ctx, claim); err != nil {
			return err
		}

		if err := enqueueClaimEvent(tx, kafka.EventTypeClaimCreated, claim); err != nil {
			return err
		}

		// отмена всегда мгновенна: заказ ещё не отгружался
		if req.Type == domain.ClaimTypeCancel {
			if err := s.completeLocked(ctx, tx, &claim, order, payment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Claim{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordClaimCreated(string(claim.Type))
		if claim.Status == domain.ClaimStatusCompleted {
			s.metrics.RecordClaimCompleted()
		}
	}
	s.logger.WithFields(log.Fields{
		"claim_id":      claim.ID,
		"order_id":      claim.OrderID,
		"claim_type":    claim.Type,
		"status":        claim.Status,
		"refund_amount": claim.RefundAmount.String(),
	}).Info("claim created")

	return claim, nil
}

// Complete завершает клейм административно (путь RETURN): возврат платежа,
// закрытие заказа и восстановление остатков по заявленным количествам.
func (s *Service) Complete(ctx context.Context, claimID string) (domain.Claim, error) {
	var claim domain.Claim
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Claims().Get(ctx, claimID)
		if err != nil {
			return err
		}
		order, err := tx.Orders().GetForUpdate(ctx, loaded.OrderID)
		if err != nil {
			return err
		}
		payment, err := tx.Payments().GetByOrderID(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := s.completeLocked(ctx, tx, &loaded, order, payment); err != nil {
			return err
		}
		claim = loaded
		return nil
	})
	if err != nil {
		return domain.Claim{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordClaimCompleted()
	}
	s.logger.WithFields(log.Fields{
		"claim_id": claim.ID,
		"order_id": claim.OrderID,
	}).Info("claim completed")

	return claim, nil
}

// completeLocked выполняет последовательность завершения под блокировкой
// заказа. Частичный клейм отменяет весь заказ, но остатки восстанавливаются
// только по заявленным количествам.
func (s *Service) completeLocked(ctx context.Context, tx domain.RepositorySet, claim *domain.Claim, order domain.Order, payment domain.Payment) error {
	if err := claim.Complete(); err != nil {
		return err
	}
	claim.UpdatedAt = time.Now().UTC()
	if err := tx.Claims().Save(ctx, *claim); err != nil {
		return err
	}

	if payment.Status != domain.PaymentStatusFailed {
		if err := payment.Refund(); err != nil {
			return err
		}
		payment.UpdatedAt = time.Now().UTC()
		if err := tx.Payments().Save(ctx, payment); err != nil {
			return err
		}
	}

	if err := order.CancelByClaim(); err != nil {
		return err
	}
	order.UpdatedAt = time.Now().UTC()
	if err := tx.Orders().Save(ctx, order); err != nil {
		return err
	}

	// восстанавливаем ровно заявленное количество, не весь заказ
	for _, item := range claim.Items {
		orderItem, ok := order.FindItem(item.OrderItemID)
		if !ok {
			return fmt.Errorf("%w: order item %s disappeared from order %s",
				domain.ErrOrderItemNotFound, item.OrderItemID, order.ID)
		}
		if err := tx.Products().IncreaseStock(ctx, orderItem.ProductID, item.Qty); err != nil {
			return err
		}
	}

	return enqueueClaimEvent(tx, kafka.EventTypeClaimCompleted, *claim)
}

// Advance переводит RETURN-клейм на следующий шаг ручной обработки.
// Последний шаг (PICKED_UP → COMPLETED) запускает полную последовательность
// завершения.
func (s *Service) Advance(ctx context.Context, claimID string) (domain.Claim, error) {
	var claim domain.Claim
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Claims().Get(ctx, claimID)
		if err != nil {
			return err
		}
		if loaded.Status == domain.ClaimStatusPickedUp {
			order, err := tx.Orders().GetForUpdate(ctx, loaded.OrderID)
			if err != nil {
				return err
			}
			payment, err := tx.Payments().GetByOrderID(ctx, order.ID)
			if err != nil {
				return err
			}
			if err := s.completeLocked(ctx, tx, &loaded, order, payment); err != nil {
				return err
			}
			claim = loaded
			return nil
		}

		if err := loaded.Advance(); err != nil {
			return err
		}
		loaded.UpdatedAt = time.Now().UTC()
		if err := tx.Claims().Save(ctx, loaded); err != nil {
			return err
		}
		claim = loaded
		return nil
	})
	if err != nil {
		return domain.Claim{}, err
	}
	return claim, nil
}

// Reject отклоняет клейм; его количества перестают учитываться в лимите.
func (s *Service) Reject(ctx context.Context, claimID, note string) (domain.Claim, error) {
	var claim domain.Claim
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Claims().Get(ctx, claimID)
		if err != nil {
			return err
		}
		if err := loaded.Reject(note); err != nil {
			return err
		}
		loaded.UpdatedAt = time.Now().UTC()
		if err := tx.Claims().Save(ctx, loaded); err != nil {
			return err
		}
		if err := enqueueClaimEvent(tx, kafka.EventTypeClaimRejected, loaded); err != nil {
			return err
		}
		claim = loaded
		return nil
	})
	if err != nil {
		return domain.Claim{}, err
	}
	return claim, nil
}

// Withdraw отзывает клейм в статусе RECEIVED: запись удаляется целиком,
// финансовых эффектов ещё не было.
func (s *Service) Withdraw(ctx context.Context, userID, claimID string) error {
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		claim, err := tx.Claims().Get(ctx, claimID)
		if err != nil {
			return err
		}
		if claim.UserID != userID {
			return domain.ErrClaimNotFound
		}
		if err := claim.EnsureWithdrawable(); err != nil {
			return err
		}
		if err := tx.Claims().Delete(ctx, claim.ID); err != nil {
			return err
		}
		return enqueueClaimEvent(tx, kafka.EventTypeClaimWithdrawn, claim)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordClaimWithdrawn()
	}
	s.logger.WithFields(log.Fields{
		"claim_id": claimID,
		"user_id":  userID,
	}).Info("claim withdrawn")

	return nil
}

// Get возвращает клейм; чужие клеймы неотличимы от отсутствующих.
func (s *Service) Get(ctx context.Context, userID, claimID string) (domain.Claim, error) {
	var claim domain.Claim
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Claims().Get(ctx, claimID)
		if err != nil {
			return err
		}
		if loaded.UserID != userID {
			return domain.ErrClaimNotFound
		}
		claim = loaded
		return nil
	})
	if err != nil {
		return domain.Claim{}, err
	}
	return claim, nil
}

// List возвращает клеймы пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]domain.Claim, error) {
	var claims []domain.Claim
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Claims().ListByUser(ctx, userID, limit)
		if err != nil {
			return err
		}
		claims = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func validateCreate(req CreateRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if req.OrderID == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrInvalidInput)
	}
	if req.Type != domain.ClaimTypeCancel && req.Type != domain.ClaimTypeReturn {
		return fmt.Errorf("%w: unknown claim type %q", domain.ErrInvalidInput, req.Type)
	}
	if req.Reason == "" {
		return fmt.Errorf("%w: reason is required", domain.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: claim must contain at least one item", domain.ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if item.OrderItemID == "" {
			return fmt.Errorf("%w: order item id is required", domain.ErrInvalidInput)
		}
		if item.Qty < 1 {
			return fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidInput)
		}
		if _, dup := seen[item.OrderItemID]; dup {
			return fmt.Errorf("%w: duplicate order item %s in claim", domain.ErrInvalidInput, item.OrderItemID)
		}
		seen[item.OrderItemID] = struct{}{}
	}
	return nil
}

func enqueueClaimEvent(tx domain.RepositorySet, eventType kafka.EventType, claim domain.Claim) error {
	payload, err := json.Marshal(kafka.NewClaimEvent(eventType, claim.ID, claim.OrderID, claim.UserID, string(claim.Type), string(claim.Status)))
	if err != nil {
		return fmt.Errorf("marshal claim event: %w", err)
	}
	_, err = tx.Outbox().Enqueue(domain.OutboxMessage{
		AggregateType: "claim",
		AggregateID:   claim.ID,
		EventType:     string(eventType),
		Payload:       payload,
	})
	return err
}
