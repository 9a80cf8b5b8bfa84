package toss

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second

	confirmPath = "/v1/payments/confirm"
	cancelPath  = "/v1/payments/%s/cancel"
)

// Коды шлюза, означающие что платёж уже обработан: повторный confirm
// с тем же ключом идемпотентности трактуется как успех.
const (
	codeAlreadyProcessing = "ALREADY_PROCESSING_PAYMENT"
	codeAlreadyApproved   = "ALREADY_APPROVED"
)

// Client — HTTP-клиент платёжного шлюза Toss Payments.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authHeader string
	logger     *log.Entry
}

// NewClient создаёт клиент шлюза. Секретный ключ кодируется в Basic-заголовок
// по схеме base64(secret + ":").
func NewClient(baseURL, secretKey string, options ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(secretKey+":")),
		logger:     log.WithField("component", "toss-gateway"),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет базовый http.Client (таймауты, транспорт).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger задаёт logger клиента.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) { c.logger = logger }
}

// Confirm подтверждает платёж во внешнем шлюзе.
func (c *Client) Confirm(ctx context.Context, req domain.GatewayConfirmRequest) error {
	body := map[string]any{
		"paymentKey": req.PaymentKey,
		"orderId":    req.OrderNumber,
		"amount":     json.Number(req.Amount.String()),
	}

	err := c.post(ctx, c.baseURL+confirmPath, req.IdempotencyKey, body)
	if err != nil {
		if gatewayErr, ok := domain.AsGatewayError(err); ok {
			switch gatewayErr.Code {
			case codeAlreadyProcessing, codeAlreadyApproved:
				c.logger.WithFields(log.Fields{
					"order_number": req.OrderNumber,
					"code":         gatewayErr.Code,
				}).Info("payment already processed by gateway, treating as success")
				return nil
			}
		}
		return fmt.Errorf("%w: %w", domain.ErrGatewayConfirmFailed, err)
	}
	return nil
}

// Cancel отменяет подтверждённый платёж во внешнем шлюзе.
func (c *Client) Cancel(ctx context.Context, paymentKey, reason, idempotencyKey string) error {
	body := map[string]any{
		"cancelReason": reason,
	}

	url := c.baseURL + fmt.Sprintf(cancelPath, paymentKey)
	if err := c.post(ctx, url, idempotencyKey, body); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGatewayCancelFailed, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url, idempotencyKey string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.authHeader)
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read gateway error response (status %d): %w", resp.StatusCode, err)
	}

	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Code == "" {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(raw))
	}

	c.logger.WithFields(log.Fields{
		"status": resp.StatusCode,
		"code":   parsed.Code,
	}).Warn("gateway rejected request")

	return &domain.GatewayError{Code: parsed.Code, Message: parsed.Message}
}

var _ domain.PaymentGateway = (*Client)(nil)
