package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/boloapp/order-service/pkg/circuitbreaker"
	apperrors "github.com/boloapp/order-service/pkg/errors"
	"github.com/boloapp/order-service/pkg/logger"
	"github.com/boloapp/order-service/pkg/retry"
)

// NotifierClient talks to the customer notification gateway (SMS/WhatsApp).
// Calls go through a circuit breaker and retry with backoff; when the
// gateway is down the caller falls back to log-only delivery, so a broken
// notifier never blocks order processing.
type NotifierClient struct {
	baseURL     string
	httpClient  *http.Client
	breaker     *circuitbreaker.Breaker
	retryConfig *retry.Config
	logger      logger.Logger
}

// NotificationRequest is the gateway's send payload.
type NotificationRequest struct {
	OrderID       string `json:"order_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Message       string `json:"message"`
}

// NotificationResponse is the gateway's reply.
type NotificationResponse struct {
	NotificationID string `json:"notification_id,omitempty"`
	Status         string `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
	Code           string `json:"code,omitempty"`
}

// NewNotifierClient creates a new NotifierClient.
func NewNotifierClient(baseURL string, timeout time.Duration, log logger.Logger) *NotifierClient {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 2,
	})

	retryConfig := &retry.Config{
		MaxAttempts: 3,
		Backoff: &retry.ExponentialBackoff{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      1.5,
			JitterFactor:    0.2,
		},
		Logger: log,
		RetryableErrors: []error{
			apperrors.ErrTimeout,
			apperrors.ErrUnavailable,
		},
	}

	return &NotifierClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     breaker,
		retryConfig: retryConfig,
		logger:      log,
	}
}

// Breaker exposes the circuit breaker for the admin API.
func (c *NotifierClient) Breaker() *circuitbreaker.Breaker {
	return c.breaker
}

// SendNotification delivers one message to the customer. Returns
// ErrUnavailable when the breaker is open.
func (c *NotifierClient) SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error) {
	var response *NotificationResponse

	err := retry.Do(ctx, func() error {
		return c.breaker.Do(func() error {
			resp, err := c.send(ctx, request)
			if err != nil {
				return err
			}
			response = resp
			return nil
		})
	}, c.retryConfig)
	if err != nil {
		c.logger.Error("failed to send notification after retries",
			"error", err,
			"orderID", request.OrderID)
		return nil, err
	}

	return response, nil
}

func (c *NotifierClient) send(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error) {
	url := fmt.Sprintf("%s/api/v1/notifications", c.baseURL)

	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Sprintf("failed to marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, apperrors.NewTimeout("notification request timed out")
		}
		return nil, apperrors.NewUnavailable(fmt.Sprintf("failed to reach notifier: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode >= 400 {
		switch resp.StatusCode {
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return nil, apperrors.NewTimeout("notification request timed out")
		case http.StatusServiceUnavailable, http.StatusInternalServerError:
			return nil, apperrors.NewUnavailable(fmt.Sprintf("notifier error: %d", resp.StatusCode))
		default:
			return nil, apperrors.NewInternal(fmt.Sprintf("notifier returned status %d", resp.StatusCode))
		}
	}

	response := &NotificationResponse{}
	if err := json.Unmarshal(body, response); err != nil {
		return nil, apperrors.NewInternal(fmt.Sprintf("failed to parse response: %v", err))
	}

	if response.Error != "" {
		if response.Code == "TIMEOUT" {
			return nil, apperrors.NewTimeout(response.Error)
		}
		return nil, apperrors.NewUnavailable(response.Error)
	}

	return response, nil
}
