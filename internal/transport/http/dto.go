package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type createOrderRequest struct {
	Items         []orderItemRequest `json:"items"`
	Shipping      shippingRequest    `json:"shipping"`
	PaymentMethod string             `json:"paymentMethod,omitempty"`
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Qty       int32  `json:"qty"`
}

type shippingRequest struct {
	Address       string `json:"address"`
	ReceiverName  string `json:"receiverName"`
	ReceiverPhone string `json:"receiverPhone"`
	Memo          string `json:"memo,omitempty"`
}

type orderItemResponse struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	Qty          int32           `json:"qty"`
	PriceAtOrder decimal.Decimal `json:"priceAtOrder"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	OrderNumber   string              `json:"orderNumber"`
	Status        string              `json:"status"`
	TotalPrice    decimal.Decimal     `json:"totalPrice"`
	Items         []orderItemResponse `json:"items"`
	Address       string              `json:"address"`
	ReceiverName  string              `json:"receiverName"`
	ReceiverPhone string              `json:"receiverPhone"`
	Memo          string              `json:"memo,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:           item.ID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Qty:          item.Qty,
			PriceAtOrder: item.PriceAtOrder,
			Subtotal:     item.Subtotal(),
		})
	}
	return orderResponse{
		ID:            order.ID,
		OrderNumber:   order.Number,
		Status:        string(order.Status),
		TotalPrice:    order.TotalPrice,
		Items:         items,
		Address:       order.ShippingAddress,
		ReceiverName:  order.ReceiverName,
		ReceiverPhone: order.ReceiverPhone,
		Memo:          order.ShippingMemo,
		CreatedAt:     order.CreatedAt,
	}
}

type confirmPaymentRequest struct {
	PaymentKey string          `json:"paymentKey"`
	OrderID    string          `json:"orderId"` // человекочитаемый номер заказа
	Amount     decimal.Decimal `json:"amount"`
}

type cancelPaymentRequest struct {
	Reason string `json:"reason"`
}

type paymentResponse struct {
	ID            string           `json:"id"`
	OrderID       string           `json:"orderId"`
	Method        string           `json:"method"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        string           `json:"status"`
	PaymentKey    string           `json:"paymentKey,omitempty"`
	PaidAt        *time.Time       `json:"paidAt,omitempty"`
	RefundAmount  *decimal.Decimal `json:"refundAmount,omitempty"`
	RefundedAt    *time.Time       `json:"refundedAt,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
}

func toPaymentResponse(p domain.Payment) paymentResponse {
	resp := paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Method:        string(p.Method),
		Amount:        p.Amount,
		Status:        string(p.Status),
		PaymentKey:    p.PaymentKey,
		PaidAt:        p.PaidAt,
		RefundedAt:    p.RefundedAt,
		TransactionID: p.TransactionID,
	}
	if !p.RefundAmount.IsZero() {
		refund := p.RefundAmount
		resp.RefundAmount = &refund
	}
	return resp
}

type createClaimRequest struct {
	OrderID       string             `json:"orderId"`
	Type          string             `json:"type"`
	Reason        string             `json:"reason"`
	Items         []claimItemRequest `json:"items"`
	BankName      string             `json:"bankName,omitempty"`
	AccountNumber string             `json:"accountNumber,omitempty"`
}

type claimItemRequest struct {
	OrderItemID string `json:"orderItemId"`
	Qty         int32  `json:"qty"`
}

type rejectClaimRequest struct {
	Note string `json:"note"`
}

type claimItemResponse struct {
	ID          string `json:"id"`
	OrderItemID string `json:"orderItemId"`
	ProductName string `json:"productName"`
	Qty         int32  `json:"qty"`
}

type claimResponse struct {
	ID           string              `json:"id"`
	OrderID      string              `json:"orderId"`
	Type         string              `json:"type"`
	Status       string              `json:"status"`
	Reason       string              `json:"reason"`
	Note         string              `json:"note,omitempty"`
	RefundAmount decimal.Decimal     `json:"refundAmount"`
	RefundMethod string              `json:"refundMethod,omitempty"`
	Items        []claimItemResponse `json:"items"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func toClaimResponse(c domain.Claim) claimResponse {
	items := make([]claimItemResponse, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, claimItemResponse{
			ID:          item.ID,
			OrderItemID: item.OrderItemID,
			ProductName: item.ProductName,
			Qty:         item.Qty,
		})
	}
	return claimResponse{
		ID:           c.ID,
		OrderID:      c.OrderID,
		Type:         string(c.Type),
		Status:       string(c.Status),
		Reason:       c.Reason,
		Note:         c.Note,
		RefundAmount: c.RefundAmount,
		RefundMethod: c.RefundMethod,
		Items:        items,
		CompletedAt:  c.CompletedAt,
		CreatedAt:    c.CreatedAt,
	}
}
