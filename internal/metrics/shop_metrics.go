package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ShopMetrics содержит метрики бизнес-операций магазина.
type ShopMetrics struct {
	ordersCreated   prometheus.Counter
	ordersCanceled  prometheus.Counter
	checkoutFailed  *prometheus.CounterVec
	paymentConfirms *prometheus.CounterVec
	claimsCreated   *prometheus.CounterVec
	claimsCompleted prometheus.Counter
	claimsWithdrawn prometheus.Counter

	checkoutDuration prometheus.Histogram
	gatewayDuration  *prometheus.HistogramVec
}

// NewShopMetrics создаёт метрики на DefaultRegisterer.
// Повторный вызов безопасен: уже зарегистрированные коллекторы переиспользуются.
func NewShopMetrics() *ShopMetrics {
	return newShopMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newShopMetricsWithRegisterer(registerer prometheus.Registerer) *ShopMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ShopMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_canceled_total",
			Help: "Total number of orders canceled",
		}),
		checkoutFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_failed_total",
			Help: "Total number of failed checkouts grouped by reason",
		}, []string{"reason"}),
		paymentConfirms: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_payment_confirms_total",
			Help: "Total number of payment confirm attempts grouped by result",
		}, []string{"result"}),
		claimsCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_claims_created_total",
			Help: "Total number of claims created grouped by type",
		}, []string{"type"}),
		claimsCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_claims_completed_total",
			Help: "Total number of claims completed",
		}),
		claimsWithdrawn: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_claims_withdrawn_total",
			Help: "Total number of claims withdrawn by the customer",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_checkout_duration_seconds",
			Help:    "Duration of checkout transactions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		gatewayDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_payment_gateway_duration_seconds",
			Help:    "Duration of payment gateway calls in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"operation"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *ShopMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderCanceled увеличивает счётчик отменённых заказов.
func (m *ShopMetrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

// RecordCheckoutFailed увеличивает счётчик неудачных оформлений.
func (m *ShopMetrics) RecordCheckoutFailed(reason string) {
	m.checkoutFailed.WithLabelValues(reason).Inc()
}

// RecordPaymentConfirm увеличивает счётчик подтверждений платежа.
func (m *ShopMetrics) RecordPaymentConfirm(result string) {
	m.paymentConfirms.WithLabelValues(result).Inc()
}

// RecordClaimCreated увеличивает счётчик созданных клеймов.
func (m *ShopMetrics) RecordClaimCreated(claimType string) {
	m.claimsCreated.WithLabelValues(claimType).Inc()
}

// RecordClaimCompleted увеличивает счётчик завершённых клеймов.
func (m *ShopMetrics) RecordClaimCompleted() {
	m.claimsCompleted.Inc()
}

// RecordClaimWithdrawn увеличивает счётчик отозванных клеймов.
func (m *ShopMetrics) RecordClaimWithdrawn() {
	m.claimsWithdrawn.Inc()
}

// RecordCheckoutDuration записывает время оформления заказа.
func (m *ShopMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordGatewayDuration записывает время вызова платёжного шлюза.
func (m *ShopMetrics) RecordGatewayDuration(operation string, duration time.Duration) {
	m.gatewayDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
