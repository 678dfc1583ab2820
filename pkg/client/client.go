// Package client is a Go SDK for the SmartPay API. Authenticated calls take the
// caller's *Session explicitly; the client itself holds no credentials.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeout = 10 * time.Second

	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

// Client talks to one SmartPay API base URL.
type Client struct {
	baseURL string
	ua      string
	http    *http.Client
}

// New creates a client. A zero timeout uses the default.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		ua:      "smartpay-go",
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// WithHTTPClient swaps the underlying transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Signup creates an account and returns its first session.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	var out authResponse
	if _, err := c.do(ctx, http.MethodPost, "/api/users/signup", nil, req, nil, &out); err != nil {
		return nil, err
	}
	return newSession(out, time.Now()), nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out authResponse
	body := loginRequest{Email: email, Password: password}
	if _, err := c.do(ctx, http.MethodPost, "/api/users/login", nil, body, nil, &out); err != nil {
		return nil, err
	}
	return newSession(out, time.Now()), nil
}

// Logout revokes the session's token on the server.
func (c *Client) Logout(ctx context.Context, s *Session) error {
	_, err := c.do(ctx, http.MethodPost, "/api/users/logout", s, nil, nil, nil)
	return err
}

func (c *Client) Profile(ctx context.Context, s *Session) (*User, error) {
	var out User
	if _, err := c.do(ctx, http.MethodGet, "/api/users/profile", s, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Wallet(ctx context.Context, s *Session) (*Wallet, error) {
	var out Wallet
	if _, err := c.do(ctx, http.MethodGet, "/api/wallet/", s, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddMoney credits the wallet. An empty key gets a fresh one.
func (c *Client) AddMoney(ctx context.Context, s *Session, amount decimal.Decimal, idempotencyKey string) (*Mutation, error) {
	return c.mutate(ctx, "/api/wallet/add-money", s, addMoneyRequest{Amount: amount}, idempotencyKey)
}

// SetLimit sets the monthly spending cap; zero removes it.
func (c *Client) SetLimit(ctx context.Context, s *Session, limit decimal.Decimal) (*Wallet, error) {
	var out Wallet
	if _, err := c.do(ctx, http.MethodPost, "/api/wallet/set-limit", s, setLimitRequest{MonthlyLimit: limit}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pay debits the wallet after the server checks the PIN, balance and limit.
func (c *Client) Pay(ctx context.Context, s *Session, req PaymentRequest) (*Mutation, error) {
	return c.mutate(ctx, "/api/wallet/payment", s, req, req.IdempotencyKey)
}

// Transactions lists the most recent entries, newest first. limit <= 0 uses the server default.
func (c *Client) Transactions(ctx context.Context, s *Session, limit int) ([]Transaction, error) {
	path := "/api/wallet/transactions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	out := []Transaction{}
	if _, err := c.do(ctx, http.MethodGet, path, s, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) mutate(ctx context.Context, path string, s *Session, body any, key string) (*Mutation, error) {
	if key == "" {
		key = uuid.NewString()
	}
	var out Mutation
	headers := http.Header{}
	headers.Set(idempotencyKeyHeader, key)
	resp, err := c.do(ctx, http.MethodPost, path, s, body, headers, &out)
	if err != nil {
		return nil, err
	}
	out.Replayed = resp.Header.Get(replayedHeader) == "true"
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, s *Session, body any, headers http.Header, out any) (*http.Response, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("smartpay request error: client is nil")
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("smartpay request error: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("smartpay request error: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}
	if s != nil {
		if s.Token == "" {
			return nil, ErrNoSession
		}
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyRequestError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("smartpay read error: status=%d: %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("smartpay decode error: %w", err)
		}
	}
	return resp, nil
}

func decodeAPIError(status int, data []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(data))
		if apiErr.Detail == "" {
			apiErr.Detail = http.StatusText(status)
		}
	}
	return apiErr
}

func classifyRequestError(ctx context.Context, err error) error {
	if isTimeoutError(ctx, err) {
		return fmt.Errorf("smartpay timeout: %w", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var opErr *net.OpError
		if errors.As(urlErr.Err, &opErr) {
			return fmt.Errorf("smartpay network error: %w", err)
		}
	}
	return fmt.Errorf("smartpay request error: %w", err)
}

func isTimeoutError(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
