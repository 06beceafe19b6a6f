package mt5

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/monitoring"
)

// tokenSkew refreshes the cached token this long before its stated expiry.
const tokenSkew = 60 * time.Second

// Client talks to the MT5 bridge API. Safe for concurrent use; all calls go
// through the shared rate limiter and retry loop.
type Client struct {
	baseURL    string
	user       string
	password   string
	maxRetries int
	timeout    time.Duration

	http    *http.Client
	limiter *rateLimiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.MT5APIBase,
		user:       cfg.MT5APIUser,
		password:   cfg.MT5APIPassword,
		maxRetries: cfg.MT5MaxRetries,
		timeout:    cfg.MT5Timeout,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: newRateLimiter(cfg.MT5RateLimitPerSec),
	}
}

// Account is the bridge's view of a trading account.
type Account struct {
	Login    int64           `json:"login"`
	Group    string          `json:"group"`
	Balance  decimal.Decimal `json:"balance"`
	Equity   decimal.Decimal `json:"equity"`
	Margin   decimal.Decimal `json:"margin"`
	Leverage int             `json:"leverage"`
	Enabled  bool            `json:"enabled"`
}

// CreatedAccount is returned on account creation; the password is plaintext
// exactly once, callers must encrypt before storing.
type CreatedAccount struct {
	Login    int64  `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
	Group    string `json:"group"`
}

type GatewayTrade struct {
	Ticket     int64            `json:"ticket"`
	Symbol     string           `json:"symbol"`
	Direction  string           `json:"direction"`
	Volume     decimal.Decimal  `json:"volume"`
	OpenPrice  decimal.Decimal  `json:"open_price"`
	ClosePrice *decimal.Decimal `json:"close_price"`
	Profit     decimal.Decimal  `json:"profit"`
	OpenedAt   time.Time        `json:"opened_at"`
	ClosedAt   *time.Time       `json:"closed_at"`
}

// authenticate fetches a fresh bearer token. Callers hold c.mu.
func (c *Client) authenticate(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{
		"username": c.user,
		"password": c.password,
	})
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: "/api/auth/login", Body: string(raw)}
	}

	var out struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("mt5: decode login response: %w", err)
	}
	c.token = out.Token
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	logging.Logger.Debug("mt5 token refreshed",
		zap.Time("expiry", c.tokenExpiry))
	return nil
}

// getToken returns a valid token, refreshing proactively near expiry.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSkew)) {
		return c.token, nil
	}
	if err := c.authenticate(ctx); err != nil {
		return "", err
	}
	return c.token, nil
}

// invalidateToken drops the cached token after a 401 so the retry
// re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func backoffDelay(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
	if base > 8*time.Second {
		base = 8 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base / 2)))
	return base/2 + jitter
}

// do performs one authenticated request with rate limiting and retries.
// 4xx responses other than 401 and 429 fail immediately.
func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.doOnce(ctx, method, endpoint, body, out)
		if lastErr == nil {
			monitoring.MT5RequestsTotal.WithLabelValues(endpoint, "ok").Inc()
			return nil
		}
		if errors.Is(lastErr, ErrUnauthorized) {
			// token may have been revoked server-side
			c.invalidateToken()
		} else if !Retryable(lastErr) {
			monitoring.MT5RequestsTotal.WithLabelValues(endpoint, "error").Inc()
			return lastErr
		}

		logging.Logger.Warn("mt5 request failed, retrying",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	monitoring.MT5RequestsTotal.WithLabelValues(endpoint, "error").Inc()
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("mt5: decode %s response: %w", endpoint, err)
	}
	return nil
}

// CreateAccount opens a trading account in the given group.
func (c *Client) CreateAccount(ctx context.Context, group, name string, leverage int, balance decimal.Decimal) (*CreatedAccount, error) {
	var out CreatedAccount
	err := c.do(ctx, http.MethodPost, "/api/users/create", map[string]interface{}{
		"group":    group,
		"name":     name,
		"leverage": leverage,
		"balance":  balance,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccount fetches the current state of a login.
func (c *Client) GetAccount(ctx context.Context, login int64) (*Account, error) {
	var out Account
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d", login), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEquity returns the account's live equity.
func (c *Client) GetEquity(ctx context.Context, login int64) (decimal.Decimal, error) {
	var out struct {
		Equity decimal.Decimal `json:"equity"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d/equity", login), nil, &out)
	if err != nil {
		return decimal.Zero, err
	}
	return out.Equity, nil
}

// GetClosedTrades lists trades closed since the given time.
func (c *Client) GetClosedTrades(ctx context.Context, login int64, since time.Time) ([]GatewayTrade, error) {
	var out struct {
		Trades []GatewayTrade `json:"trades"`
	}
	endpoint := fmt.Sprintf("/api/users/%d/trades?since=%d", login, since.Unix())
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Trades, nil
}

// ChangeGroup moves the login to another broker group, used on phase change.
func (c *Client) ChangeGroup(ctx context.Context, login int64, group string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/users/%d/group", login),
		map[string]string{"group": group}, nil)
}

// SetBalance resets the account balance, used when a new phase starts.
func (c *Client) SetBalance(ctx context.Context, login int64, balance decimal.Decimal) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/users/%d/balance", login),
		map[string]interface{}{"balance": balance}, nil)
}

// DisableAccount blocks trading on a failed or closed account.
func (c *Client) DisableAccount(ctx context.Context, login int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/users/%d/disable", login), nil, nil)
}
