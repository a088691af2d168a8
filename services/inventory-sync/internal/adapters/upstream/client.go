package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/metrics"
	"github.com/avast/retry-go"
)

// TokenProvider источник bearer токена
type TokenProvider interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// Config параметры клиента внешнего API
type Config struct {
	URL        string
	Timeout    time.Duration
	MaxRetries uint
	RetryDelay time.Duration
}

// Client GraphQL клиент складской системы
type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenProvider
	logger     interfaces.LoggerPort
	maxRetries uint
	retryDelay time.Duration
}

// NewClient создает клиент
func NewClient(cfg Config, tokens TokenProvider, logger interfaces.LoggerPort) (*Client, error) {
	if cfg.URL == "" {
		return nil, pkgerrors.NewConfigError("upstream.url", "is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	return &Client{
		endpoint:   cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// GenerateSnapshot запрашивает снапшот остатков по складу
func (c *Client) GenerateSnapshot(ctx context.Context, warehouseToken string) (*models.SnapshotRequest, error) {
	var out struct {
		Payload *struct {
			RequestID string       `json:"request_id"`
			Snapshot  *snapshotDTO `json:"snapshot"`
		} `json:"inventory_generate_snapshot"`
	}

	vars := map[string]interface{}{"warehouse_id": warehouseToken}
	if err := c.do(ctx, "generate snapshot", generateSnapshotMutation, vars, &out); err != nil {
		return nil, err
	}
	if out.Payload == nil || out.Payload.Snapshot == nil || out.Payload.Snapshot.SnapshotID == "" {
		return nil, &pkgerrors.UpstreamAPIError{Operation: "generate snapshot", Message: "empty snapshot in response"}
	}

	return &models.SnapshotRequest{
		RequestID:  out.Payload.RequestID,
		SnapshotID: out.Payload.Snapshot.SnapshotID,
		Status:     out.Payload.Snapshot.Status,
	}, nil
}

// GetSnapshot возвращает состояние снапшота
func (c *Client) GetSnapshot(ctx context.Context, snapshotID string) (*models.SnapshotStatus, error) {
	var out struct {
		Payload *struct {
			RequestID string       `json:"request_id"`
			Snapshot  *snapshotDTO `json:"snapshot"`
		} `json:"inventory_snapshot"`
	}

	vars := map[string]interface{}{"snapshot_id": snapshotID}
	if err := c.do(ctx, "get snapshot", snapshotQuery, vars, &out); err != nil {
		return nil, err
	}
	if out.Payload == nil || out.Payload.Snapshot == nil {
		return nil, &pkgerrors.UpstreamAPIError{
			Operation:  "get snapshot",
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("snapshot %s not found", snapshotID),
		}
	}

	status := out.Payload.Snapshot.toStatus()
	status.RequestID = out.Payload.RequestID
	return status, nil
}

// AbortSnapshot просит отменить формирование снапшота
func (c *Client) AbortSnapshot(ctx context.Context, snapshotID, reason string) (*models.AbortResult, error) {
	var out struct {
		Payload *struct {
			RequestID string       `json:"request_id"`
			Snapshot  *snapshotDTO `json:"snapshot"`
		} `json:"inventory_abort_snapshot"`
	}

	vars := map[string]interface{}{"snapshot_id": snapshotID, "reason": reason}
	if err := c.do(ctx, "abort snapshot", abortSnapshotMutation, vars, &out); err != nil {
		return nil, err
	}

	result := &models.AbortResult{SnapshotID: snapshotID}
	if out.Payload != nil {
		result.RequestID = out.Payload.RequestID
		if out.Payload.Snapshot != nil {
			result.Status = out.Payload.Snapshot.Status
			result.Error = out.Payload.Snapshot.Error
		}
	}
	if result.Error != "" {
		return nil, &pkgerrors.UpstreamAPIError{Operation: "abort snapshot", Message: result.Error}
	}
	return result, nil
}

// do выполняет GraphQL операцию с повтором временных ошибок
func (c *Client) do(ctx context.Context, operation, query string, vars map[string]interface{}, out interface{}) error {
	token, err := c.tokens.GetValidAccessToken(ctx)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(operation, "auth_expired").Inc()
		return err
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	var data json.RawMessage
	err = retry.Do(
		func() error {
			var callErr error
			data, callErr = c.call(ctx, operation, token, body)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(c.maxRetries),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnWithContext(ctx, "Повтор запроса к внешнему API",
				interfaces.LogField{Key: "operation", Value: operation},
				interfaces.LogField{Key: "attempt", Value: n + 1},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}),
	)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(operation, "error").Inc()
		return err
	}
	metrics.UpstreamRequests.WithLabelValues(operation, "ok").Inc()

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &pkgerrors.UpstreamAPIError{Operation: operation, Message: fmt.Sprintf("invalid response: %v", err)}
		}
	}
	return nil
}

func (c *Client) call(ctx context.Context, operation, token string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &pkgerrors.UpstreamAPIError{Operation: operation, Message: err.Error(), StatusCode: http.StatusServiceUnavailable}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &pkgerrors.UpstreamAPIError{Operation: operation, Message: err.Error(), StatusCode: http.StatusBadGateway}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &pkgerrors.AuthExpiredError{Source: "upstream", Detail: fmt.Sprintf("%s rejected with status %d", operation, resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &pkgerrors.UpstreamAPIError{Operation: operation, StatusCode: resp.StatusCode, Message: truncate(string(raw), 512)}
	}

	var gql graphQLResponse
	if err := json.Unmarshal(raw, &gql); err != nil {
		return nil, &pkgerrors.UpstreamAPIError{Operation: operation, StatusCode: resp.StatusCode, Message: fmt.Sprintf("invalid response: %v", err)}
	}

	if len(gql.Errors) > 0 {
		first := gql.Errors[0]
		if code, _ := first.Extensions["code"].(string); code == "UNAUTHENTICATED" || code == "TOKEN_EXPIRED" {
			return nil, &pkgerrors.AuthExpiredError{Source: "upstream", Detail: first.Message}
		}
		return nil, &pkgerrors.UpstreamAPIError{Operation: operation, Message: first.Message}
	}

	return gql.Data, nil
}

// isRetryable повторяются только временные ошибки внешнего API
func isRetryable(err error) bool {
	if pkgerrors.IsAuthExpired(err) {
		return false
	}
	var apiErr *pkgerrors.UpstreamAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
