package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/claim"
)

type claimHandler struct {
	svc *claim.Service
}

func (h *claimHandler) Create(c echo.Context) error {
	var req createClaimRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	items := make([]claim.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, claim.ItemRequest{OrderItemID: item.OrderItemID, Qty: item.Qty})
	}

	created, err := h.svc.Create(c.Request().Context(), claim.CreateRequest{
		UserID:        userID(c),
		OrderID:       req.OrderID,
		Type:          domain.ClaimType(req.Type),
		Reason:        req.Reason,
		Items:         items,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toClaimResponse(created))
}

func (h *claimHandler) Get(c echo.Context) error {
	loaded, err := h.svc.Get(c.Request().Context(), userID(c), c.Param("claimID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toClaimResponse(loaded))
}

func (h *claimHandler) List(c echo.Context) error {
	claims, err := h.svc.List(c.Request().Context(), userID(c), queryLimit(c))
	if err != nil {
		return err
	}
	resp := make([]claimResponse, 0, len(claims))
	for _, loaded := range claims {
		resp = append(resp, toClaimResponse(loaded))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *claimHandler) Withdraw(c echo.Context) error {
	if err := h.svc.Withdraw(c.Request().Context(), userID(c), c.Param("claimID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *claimHandler) Advance(c echo.Context) error {
	advanced, err := h.svc.Advance(c.Request().Context(), c.Param("claimID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toClaimResponse(advanced))
}

func (h *claimHandler) Complete(c echo.Context) error {
	completed, err := h.svc.Complete(c.Request().Context(), c.Param("claimID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toClaimResponse(completed))
}

func (h *claimHandler) Reject(c echo.Context) error {
	var req rejectClaimRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rejected, err := h.svc.Reject(c.Request().Context(), c.Param("claimID"), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toClaimResponse(rejected))
}
