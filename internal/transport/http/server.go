// Package httpapi содержит HTTP-поверхность магазина на echo:
// заказы, платежи и клеймы.
package httpapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/claim"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
)

// Server — HTTP API поверх сервисов магазина.
type Server struct {
	echo     *echo.Echo
	orders   *orderHandler
	payments *paymentHandler
	claims   *claimHandler
	logger   *log.Entry
}

// NewServer собирает echo со всеми маршрутами.
func NewServer(checkoutSvc *checkout.Service, paymentSvc *payment.Service, claimSvc *claim.Service, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler(logger)

	s := &Server{
		echo:     e,
		orders:   &orderHandler{svc: checkoutSvc},
		payments: &paymentHandler{svc: paymentSvc},
		claims:   &claimHandler{svc: claimSvc},
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api", userAuth())

	orders := api.Group("/orders")
	orders.POST("", s.orders.Create)
	orders.GET("", s.orders.List)
	orders.GET("/:orderID", s.orders.Get)
	orders.GET("/number/:orderNumber", s.orders.GetByNumber)
	orders.POST("/:orderID/cancel", s.orders.Cancel)
	orders.GET("/:orderID/payment", s.payments.GetByOrder)

	payments := api.Group("/payments")
	payments.POST("/confirm", s.payments.Confirm)

	claims := api.Group("/claims")
	claims.POST("", s.claims.Create)
	claims.GET("", s.claims.List)
	claims.GET("/:claimID", s.claims.Get)
	claims.DELETE("/:claimID", s.claims.Withdraw)

	// административные переходы; аутентификация оператора — забота
	// вышестоящего прокси
	admin := s.echo.Group("/api/admin")
	admin.POST("/claims/:claimID/advance", s.claims.Advance)
	admin.POST("/claims/:claimID/complete", s.claims.Complete)
	admin.POST("/claims/:claimID/reject", s.claims.Reject)
	admin.POST("/payments/:paymentID/cancel", s.payments.Cancel)
}

// Handler возвращает http.Handler для тестов и встраивания.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

// Start слушает addr до остановки.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown аккуратно останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
