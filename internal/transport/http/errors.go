package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
)

// errorResponse — тело ошибки API: машиночитаемый код и безопасное сообщение.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler переводит доменные ошибки в HTTP-статусы. Сырые сообщения
// шлюза и внутренние детали наружу не выходят.
func errorHandler(logger *log.Entry) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			msg, ok := httpErr.Message.(string)
			if !ok {
				msg = http.StatusText(httpErr.Code)
			}
			_ = c.JSON(httpErr.Code, errorResponse{Code: codeForStatus(httpErr.Code), Message: msg})
			return
		}

		status, body := mapDomainError(err)
		if status == http.StatusInternalServerError {
			logger.WithError(err).WithField("path", c.Path()).Error("unhandled error")
		}
		_ = c.JSON(status, body)
	}
}

func mapDomainError(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, errorResponse{"PRODUCT_NOT_FOUND", "Product not found."}
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, errorResponse{"ORDER_NOT_FOUND", "Order not found."}
	case errors.Is(err, domain.ErrOrderItemNotFound):
		return http.StatusNotFound, errorResponse{"ORDER_ITEM_NOT_FOUND", "Order item not found."}
	case errors.Is(err, domain.ErrPaymentNotFound):
		return http.StatusNotFound, errorResponse{"PAYMENT_NOT_FOUND", "Payment not found."}
	case errors.Is(err, domain.ErrClaimNotFound):
		return http.StatusNotFound, errorResponse{"CLAIM_NOT_FOUND", "Claim not found."}
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusBadRequest, errorResponse{"OUT_OF_STOCK", "Not enough stock for the requested quantity."}
	case errors.Is(err, domain.ErrPaymentAmountMismatch):
		return http.StatusBadRequest, errorResponse{"PAYMENT_AMOUNT_MISMATCH", payment.UserMessage(err)}
	case errors.Is(err, domain.ErrOrderAlreadyCancelled):
		return http.StatusBadRequest, errorResponse{"ORDER_ALREADY_CANCELLED", payment.UserMessage(err)}
	case errors.Is(err, domain.ErrPaymentAlreadyCompleted):
		return http.StatusBadRequest, errorResponse{"PAYMENT_ALREADY_COMPLETED", "Payment is already completed."}
	case errors.Is(err, domain.ErrPaymentAlreadyRefunded):
		return http.StatusBadRequest, errorResponse{"PAYMENT_ALREADY_REFUNDED", "Payment is already refunded."}
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest, errorResponse{"INVALID_STATE", "The operation is not allowed in the current state."}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{"INVALID_INPUT", "Invalid request."}
	case errors.Is(err, domain.ErrGatewayConfirmFailed):
		return http.StatusBadGateway, errorResponse{"PAYMENT_CONFIRM_FAILED", payment.UserMessage(err)}
	case errors.Is(err, domain.ErrGatewayCancelFailed):
		return http.StatusBadGateway, errorResponse{"PAYMENT_CANCEL_FAILED", payment.UserMessage(err)}
	default:
		if _, ok := domain.AsGatewayError(err); ok {
			return http.StatusBadGateway, errorResponse{"PAYMENT_CONFIRM_FAILED", payment.UserMessage(err)}
		}
		return http.StatusInternalServerError, errorResponse{"INTERNAL_SERVER_ERROR", "Internal server error."}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusBadRequest:
		return "INVALID_INPUT"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}
