package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vladislavdragonenkov/shop/internal/service/payment"
)

type paymentHandler struct {
	svc *payment.Service
}

// Confirm — callback платёжной страницы после ввода карты.
func (h *paymentHandler) Confirm(c echo.Context) error {
	var req confirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	confirmed, err := h.svc.Confirm(c.Request().Context(), payment.ConfirmRequest{
		PaymentKey:  req.PaymentKey,
		OrderNumber: req.OrderID,
		Amount:      req.Amount,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPaymentResponse(confirmed))
}

func (h *paymentHandler) GetByOrder(c echo.Context) error {
	loaded, err := h.svc.GetByOrder(c.Request().Context(), userID(c), c.Param("orderID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPaymentResponse(loaded))
}

// Cancel — административный возврат платежа через шлюз.
func (h *paymentHandler) Cancel(c echo.Context) error {
	var req cancelPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Reason == "" {
		req.Reason = "admin cancel"
	}

	refunded, err := h.svc.Cancel(c.Request().Context(), c.Param("paymentID"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPaymentResponse(refunded))
}
