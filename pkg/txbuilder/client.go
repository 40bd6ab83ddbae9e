package txbuilder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

// ClientConfig holds the configuration for the construction service client
type ClientConfig struct {
	BaseURL    string
	Logger     *zap.Logger
	HTTPClient *http.Client // optional, defaults to a client with a request timeout
}

// Client requests signable transfer payloads from the hosted transaction
// construction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Builder = (*Client)(nil)

// NewClient creates a new construction service client instance
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}, nil
}

// BuildTransfer requests a signable transfer transaction keyed by
// (token, to, amount, account).
func (c *Client) BuildTransfer(ctx context.Context, req TransferRequest) (string, error) {
	if req.Token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	if req.To == "" {
		return "", fmt.Errorf("destination cannot be empty")
	}
	if req.Account == "" {
		return "", fmt.Errorf("account cannot be empty")
	}

	query := url.Values{}
	query.Set("to", req.To)
	query.Set("amount", strconv.FormatFloat(req.Amount, 'f', -1, 64))
	endpoint := fmt.Sprintf("%s/api/v0/transfer/%s?%s", c.baseURL, url.PathEscape(req.Token), query.Encode())

	body, err := json.Marshal(map[string]string{
		"type":    "transaction",
		"account": req.Account,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode request body")
	}

	c.logger.Sugar().Debugw("Requesting transfer transaction",
		"token", req.Token,
		"to", req.To,
		"amount", req.Amount,
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "construction request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		c.logger.Sugar().Warnw("Construction service returned error",
			"status_code", resp.StatusCode,
			"token", req.Token,
			"amount", req.Amount,
			"body", string(detail),
		)
		return "", &RequestError{
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(detail)),
		}
	}

	var response struct {
		Type        string `json:"type"`
		Transaction string `json:"transaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", errors.Wrap(err, "failed to decode construction response")
	}
	if response.Transaction == "" {
		return "", fmt.Errorf("construction response contained no transaction")
	}

	return response.Transaction, nil
}
