package actioncodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 15 * time.Second

// ClientConfig holds the configuration for the action codes client
type ClientConfig struct {
	BaseURL    string
	Logger     *zap.Logger
	HTTPClient *http.Client // optional, defaults to a client with a request timeout
}

// Client talks to the action codes relay over HTTP. It implements
// Resolver, Attacher and StatusSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ Resolver     = (*Client)(nil)
	_ Attacher     = (*Client)(nil)
	_ StatusSource = (*Client)(nil)
)

// NewClient creates a new action codes client instance
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

// Resolve resolves an action code to the account that issued it.
func (c *Client) Resolve(ctx context.Context, code string) (string, error) {
	var response struct {
		Pubkey string `json:"pubkey"`
	}

	err := c.postJSON(ctx, "/api/v1/resolve", map[string]string{"code": code}, &response)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve action code")
	}
	if response.Pubkey == "" {
		return "", fmt.Errorf("resolve response missing pubkey")
	}

	c.logger.Sugar().Debugw("Resolved action code", "account", response.Pubkey)
	return response.Pubkey, nil
}

// AttachMessage attaches message text to an action code for signing.
func (c *Client) AttachMessage(ctx context.Context, code, text string) error {
	body := map[string]string{"code": code, "message": text}
	if err := c.postJSON(ctx, "/api/v1/attach/message", body, nil); err != nil {
		return errors.Wrap(err, "failed to attach message")
	}
	return nil
}

// AttachTransaction attaches a serialized transaction to an action code for signing.
func (c *Client) AttachTransaction(ctx context.Context, code, payload string) error {
	body := map[string]string{"code": code, "transaction": payload}
	if err := c.postJSON(ctx, "/api/v1/attach/transaction", body, nil); err != nil {
		return errors.Wrap(err, "failed to attach transaction")
	}
	return nil
}

// Status fetches the current status snapshot for an action code.
func (c *Client) Status(ctx context.Context, code string) (*StatusSnapshot, error) {
	endpoint := c.baseURL + "/api/v1/status/" + url.PathEscape(code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build status request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "status request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var snapshot StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to decode status response")
	}

	return &snapshot, nil
}

// postJSON posts a JSON body and optionally decodes the JSON response into out.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
