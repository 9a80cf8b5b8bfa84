package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// Количество попыток вставки заказа при коллизии номера.
const orderNumberAttempts = 3

// ItemRequest — запрошенная позиция заказа.
type ItemRequest struct {
	ProductID string
	Qty       int32
}

// ShippingInfo — данные доставки, снимаются в заказ как есть.
type ShippingInfo struct {
	Address       string
	ReceiverName  string
	ReceiverPhone string
	Memo          string
}

// CreateOrderRequest — параметры оформления заказа.
type CreateOrderRequest struct {
	UserID        string
	Items         []ItemRequest
	Shipping      ShippingInfo
	PaymentMethod domain.PaymentMethod
}

// Service оформляет и отменяет заказы. Каждая операция выполняется
// как одна атомарная транзакция unit of work.
type Service struct {
	uow     domain.UnitOfWork
	cart    domain.CartService
	logger  *log.Entry
	metrics *metrics.ShopMetrics
}

// NewService создаёт сервис оформления заказов.
func NewService(uow domain.UnitOfWork, cart domain.CartService, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	return &Service{
		uow:     uow,
		cart:    cart,
		logger:  logger,
		metrics: metrics.NewShopMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(uow domain.UnitOfWork, cart domain.CartService, logger *log.Entry) *Service {
	svc := NewService(uow, cart, logger)
	svc.metrics = nil
	return svc
}

// CreateOrder списывает остатки, снимает цены в позиции заказа, создаёт заказ
// с платежом в статусе PENDING и очищает корзину пользователя. Любая ошибка
// внутри транзакции откатывает все списания целиком.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	if err := validateCreateOrder(req); err != nil {
		s.recordCheckoutFailure("invalid_input")
		return domain.Order{}, err
	}
	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCard
	}

	var order domain.Order
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		created, err := s.createOrderTx(ctx, req, method)
		if err == nil {
			order = created
			break
		}
		if errors.Is(err, domain.ErrOrderNumberTaken) && attempt < orderNumberAttempts {
			s.logger.WithFields(log.Fields{
				"user_id": req.UserID,
				"attempt": attempt,
			}).Warn("order number collision, retrying with a fresh number")
			continue
		}
		s.recordCheckoutFailure(failureReason(err))
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.Number,
		"user_id":      order.UserID,
		"total_price":  order.TotalPrice.String(),
	}).Info("order created")

	// Корзина — внешний collaborator: ошибка очистки не отменяет заказ.
	if s.cart != nil {
		if err := s.cart.ClearCart(ctx, req.UserID); err != nil {
			s.logger.WithError(err).WithField("user_id", req.UserID).Warn("failed to clear cart after checkout")
		}
	}

	return order, nil
}

func (s *Service) createOrderTx(ctx context.Context, req CreateOrderRequest, method domain.PaymentMethod) (domain.Order, error) {
	now := time.Now().UTC()
	order := domain.Order{
		ID:              uuid.NewString(),
		Number:          domain.NewOrderNumber(now),
		UserID:          req.UserID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: req.Shipping.Address,
		ReceiverName:    req.Shipping.ReceiverName,
		ReceiverPhone:   req.Shipping.ReceiverPhone,
		ShippingMemo:    req.Shipping.Memo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		total := decimal.Zero
		for _, item := range req.Items {
			product, err := tx.Products().DecreaseStock(ctx, item.ProductID, item.Qty)
			if err != nil {
				return err
			}
			orderItem := domain.OrderItem{
				ID:           uuid.NewString(),
				ProductID:    product.ID,
				ProductName:  product.Name,
				Qty:          item.Qty,
				PriceAtOrder: product.Price,
				CreatedAt:    now,
			}
			order.Items = append(order.Items, orderItem)
			total = total.Add(orderItem.Subtotal())
		}
		order.TotalPrice = total

		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errs[0]
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		payment := domain.Payment{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			Method:    method,
			Amount:    order.TotalPrice,
			Status:    domain.PaymentStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}

		return enqueueOrderEvent(tx, kafka.EventTypeOrderCreated, order)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// CancelOrder отменяет заказ целиком: статус CANCELLED, возврат остатков,
// возврат платежа и завершённый CANCEL-клейм — одной транзакцией.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	var (
		order domain.Order
		claim domain.Claim
	)

	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if loaded.UserID != userID {
			return domain.ErrOrderNotFound
		}

		if err := loaded.Cancel(); err != nil {
			return err
		}
		loaded.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Save(ctx, loaded); err != nil {
			return err
		}

		for _, item := range loaded.Items {
			if err := tx.Products().IncreaseStock(ctx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}

		refundMethod := ""
		payment, err := tx.Payments().GetByOrderID(ctx, loaded.ID)
		switch {
		case err == nil:
			refundMethod = string(payment.Method)
			// платёж в FAILED возвращать нечего
			if payment.Status != domain.PaymentStatusFailed {
				if refundErr := payment.Refund(); refundErr != nil {
					return refundErr
				}
				payment.UpdatedAt = time.Now().UTC()
				if err := tx.Payments().Save(ctx, payment); err != nil {
					return err
				}
			}
		case errors.Is(err, domain.ErrPaymentNotFound):
			// заказ без платежа отменяется без возврата
		default:
			return err
		}

		claim, err = buildCancelClaim(loaded, refundMethod, "order canceled by customer")
		if err != nil {
			return err
		}
		if err := tx.Claims().Create(ctx, claim); err != nil {
			return err
		}

		if err := enqueueOrderEvent(tx, kafka.EventTypeOrderCanceled, loaded); err != nil {
			return err
		}
		if err := enqueueClaimEvent(tx, kafka.EventTypeClaimCompleted, claim); err != nil {
			return err
		}

		order = loaded
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCanceled()
	}
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"claim_id": claim.ID,
		"user_id":  userID,
	}).Info("order canceled")

	return order, nil
}

// GetOrder возвращает заказ с позициями; чужие заказы неотличимы от отсутствующих.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	var order domain.Order
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if loaded.UserID != userID {
			return domain.ErrOrderNotFound
		}
		order = loaded
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// GetOrderByNumber возвращает заказ по человекочитаемому номеру. Редирект
// со страницы оплаты несёт только номер заказа, а не внутренний id.
func (s *Service) GetOrderByNumber(ctx context.Context, userID, number string) (domain.Order, error) {
	var order domain.Order
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Orders().GetByNumber(ctx, number)
		if err != nil {
			return err
		}
		if loaded.UserID != userID {
			return domain.ErrOrderNotFound
		}
		order = loaded
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ListOrders возвращает заказы пользователя, новые первыми.
func (s *Service) ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := s.uow.Within(ctx, func(tx domain.RepositorySet) error {
		loaded, err := tx.Orders().ListByUser(ctx, userID, limit)
		if err != nil {
			return err
		}
		orders = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// buildCancelClaim строит сразу завершённый CANCEL-клейм на весь заказ.
// Возврат считается по снятым в заказ ценам.
func buildCancelClaim(order domain.Order, refundMethod, reason string) (domain.Claim, error) {
	now := time.Now().UTC()
	claim := domain.Claim{
		ID:           uuid.NewString(),
		OrderID:      order.ID,
		UserID:       order.UserID,
		Type:         domain.ClaimTypeCancel,
		Status:       domain.ClaimStatusCompleted,
		Reason:       reason,
		RefundAmount: order.TotalPrice,
		RefundMethod: refundMethod,
		CompletedAt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, item := range order.Items {
		claim.Items = append(claim.Items, domain.ClaimItem{
			ID:          uuid.NewString(),
			OrderItemID: item.ID,
			ProductName: item.ProductName,
			Qty:         item.Qty,
		})
	}
	if errs := claim.Validate(); len(errs) > 0 {
		return domain.Claim{}, errs[0]
	}
	return claim, nil
}

func validateCreateOrder(req CreateOrderRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", domain.ErrInvalidInput)
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: product id is required", domain.ErrInvalidInput)
		}
		if item.Qty < 1 {
			return fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidInput)
		}
	}
	if req.Shipping.Address == "" {
		return fmt.Errorf("%w: shipping address is required", domain.ErrInvalidInput)
	}
	return nil
}

func (s *Service) recordCheckoutFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordCheckoutFailed(reason)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrOrderNumberTaken):
		return "order_number_collision"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

func enqueueOrderEvent(tx domain.RepositorySet, eventType kafka.EventType, order domain.Order) error {
	payload, err := json.Marshal(kafka.NewOrderEvent(eventType, order.ID, order.Number, order.UserID, string(order.Status)))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	_, err = tx.Outbox().Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	})
	return err
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
