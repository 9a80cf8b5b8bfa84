package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound возвращается, если товар не найден или снят с продажи.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден или принадлежит другому пользователю.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderItemNotFound возвращается, если позиция не входит в указанный заказ.
	ErrOrderItemNotFound = errors.New("order item not found")
	// ErrPaymentNotFound возвращается, если платёж по заказу отсутствует.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrClaimNotFound возвращается, если клейм не найден или принадлежит другому пользователю.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrOutOfStock — недостаточно остатка для списания.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInvalidState — операция недопустима в текущем статусе стейт-машины.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrInvalidInput — запрос ссылается на данные вне допустимой области
	// (количество сверх лимита, чужая позиция заказа и т.п.).
	ErrInvalidInput = errors.New("invalid input")

	// ErrPaymentAmountMismatch — сумма от клиента/шлюза не совпадает с суммой заказа.
	ErrPaymentAmountMismatch = errors.New("payment amount mismatch")
	// ErrPaymentAlreadyCompleted — guard от повторного завершения платежа.
	ErrPaymentAlreadyCompleted = errors.New("payment already completed")
	// ErrPaymentAlreadyRefunded — guard от повторного возврата.
	ErrPaymentAlreadyRefunded = errors.New("payment already refunded")
	// ErrOrderAlreadyCancelled — попытка подтвердить оплату по отменённому заказу.
	ErrOrderAlreadyCancelled = errors.New("order already cancelled")

	// ErrGatewayConfirmFailed — платёжный шлюз отклонил подтверждение.
	ErrGatewayConfirmFailed = errors.New("gateway confirm failed")
	// ErrGatewayCancelFailed — платёжный шлюз отклонил отмену.
	ErrGatewayCancelFailed = errors.New("gateway cancel failed")

	// ErrOrderNumberTaken — коллизия уникального номера заказа при вставке.
	ErrOrderNumberTaken = errors.New("order number already taken")
	// ErrPaymentExists — у заказа уже есть платёж (нарушение 1:1).
	ErrPaymentExists = errors.New("payment for order already exists")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к классу "не найдено / не принадлежит".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOrderItemNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrClaimNotFound)
}

// GatewayError несёт машиночитаемый код и сообщение от платёжного шлюза.
// Сырое сообщение логируется, но никогда не показывается пользователю.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

// AsGatewayError извлекает GatewayError из цепочки ошибок.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
