package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
)

type orderHandler struct {
	svc *checkout.Service
}

func (h *orderHandler) Create(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	items := make([]checkout.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, checkout.ItemRequest{ProductID: item.ProductID, Qty: item.Qty})
	}

	order, err := h.svc.CreateOrder(c.Request().Context(), checkout.CreateOrderRequest{
		UserID: userID(c),
		Items:  items,
		Shipping: checkout.ShippingInfo{
			Address:       req.Shipping.Address,
			ReceiverName:  req.Shipping.ReceiverName,
			ReceiverPhone: req.Shipping.ReceiverPhone,
			Memo:          req.Shipping.Memo,
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *orderHandler) Get(c echo.Context) error {
	order, err := h.svc.GetOrder(c.Request().Context(), userID(c), c.Param("orderID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *orderHandler) GetByNumber(c echo.Context) error {
	order, err := h.svc.GetOrderByNumber(c.Request().Context(), userID(c), c.Param("orderNumber"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *orderHandler) List(c echo.Context) error {
	limit := queryLimit(c)
	orders, err := h.svc.ListOrders(c.Request().Context(), userID(c), limit)
	if err != nil {
		return err
	}
	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *orderHandler) Cancel(c echo.Context) error {
	order, err := h.svc.CancelOrder(c.Request().Context(), userID(c), c.Param("orderID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func queryLimit(c echo.Context) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
