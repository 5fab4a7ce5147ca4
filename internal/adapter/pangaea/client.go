// Package pangaea implements the online cash register gateway client.
package pangaea

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	domainErrors "github.com/ketovdk/fiscalgate/internal/domain/errors"
	"github.com/ketovdk/fiscalgate/internal/fiscal/codec"
	"github.com/ketovdk/fiscalgate/internal/metrics"
)

// Response carries a raw gateway answer. Interpretation of the code belongs
// to the status classifier, not the client.
type Response struct {
	Code int
	Body []byte
}

// CashboxInfo is the cashbox registration record used for settings checks.
type CashboxInfo struct {
	Taxation      int      `json:"taxation"`
	BillingPlaces []string `json:"billing_place_list"`
}

// Client exposes the gateway operations the service consumes.
type Client interface {
	SendReceipt(ctx context.Context, uuid string, payload *codec.Payload) (*Response, error)
	GetReceipt(ctx context.Context, uuid string) (*Response, error)
	GetCashbox(ctx context.Context) (*Response, error)
	ReceiptLink(uuid string) string
}

// HTTPClient implements Client over the Pangaea HTTP API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	actorID    string
	actorToken string
	cashbox    string
	agent      bool
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewHTTPClient creates a gateway client with default timeout.
func NewHTTPClient(baseURL, actorID, actorToken, cashbox string, agent bool, logger *slog.Logger, m *metrics.Metrics) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("gateway url must be absolute")
	}
	return &HTTPClient{
		baseURL:    parsed,
		actorID:    actorID,
		actorToken: actorToken,
		cashbox:    cashbox,
		agent:      agent,
		logger:     logger,
		metrics:    m,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// SendReceipt submits a receipt under its idempotency key.
func (c *HTTPClient) SendReceipt(ctx context.Context, uuid string, payload *codec.Payload) (*Response, error) {
	point := "online_store"
	if c.agent {
		point = "online_store_agent"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode receipt payload: %w", err)
	}
	path := fmt.Sprintf("/c_groups/%s/receipts/%s/%s", c.cashbox, point, uuid)
	return c.do(ctx, http.MethodPost, path, body)
}

// GetReceipt polls the fiscalization state of a previously submitted receipt.
func (c *HTTPClient) GetReceipt(ctx context.Context, uuid string) (*Response, error) {
	path := fmt.Sprintf("/c_groups/%s/receipts/%s", c.cashbox, uuid)
	return c.do(ctx, http.MethodGet, path, nil)
}

// GetCashbox fetches the cashbox registration record.
func (c *HTTPClient) GetCashbox(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/c_groups/"+c.cashbox, nil)
}

// ReceiptLink returns the public render URL of a fiscalized receipt.
func (c *HTTPClient) ReceiptLink(uuid string) string {
	link := *c.baseURL
	link.Path += "/receipt/show/" + uuid
	return link.String()
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	endpoint := *c.baseURL
	endpoint.Path += path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.actorID, c.actorToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveGateway(method, "transport")
		c.logger.Error("gateway request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, &domainErrors.TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveGateway(method, "transport")
		return nil, &domainErrors.TransportError{Err: err}
	}

	c.metrics.ObserveGateway(method, strconv.Itoa(resp.StatusCode))
	c.logger.Debug("gateway answer",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return &Response{Code: resp.StatusCode, Body: respBody}, nil
}

// DecodeCashbox parses a cashbox registration answer.
func (r *Response) DecodeCashbox() (*CashboxInfo, error) {
	var info CashboxInfo
	if err := json.Unmarshal(r.Body, &info); err != nil {
		return nil, fmt.Errorf("decode cashbox info: %w", err)
	}
	return &info, nil
}
