// Package bitable is a small client for the Feishu bitable open API: tenant
// token exchange, record listing and authenticated media download.
package bitable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"car-showroom/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://open.feishu.cn"
	DefaultPageSize = 100
	MaxPageSize     = 100

	tokenPath        = "/open-apis/auth/v3/tenant_access_token/internal"
	recordsPathFmt   = "/open-apis/bitable/v1/apps/%s/tables/%s/records"
	imageUserAgent   = "Feishu-Image-Proxy/1.0"
	maxResponseBytes = 32 << 20
)

// Provider codes meaning the bearer token was rejected
const (
	codeTokenMissing = 99991661
	codeTokenInvalid = 99991663
)

var (
	ErrNotConfigured    = errors.New("missing environment variables")
	ErrUnexpectedStatus = errors.New("unexpected status from provider")
)

// ProviderError is a non-zero code reported by the open API
type ProviderError struct {
	Code int
	Msg  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("Feishu Error %d: %s", e.Code, e.Msg)
}

func (e *ProviderError) tokenRejected() bool {
	return e.Code == codeTokenMissing || e.Code == codeTokenInvalid
}

// HTTPClient performs HTTP requests. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config identifies the app credentials and the catalog table
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AppToken  string
	TableID   string
	PageSize  int
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
	Timeout   time.Duration
	// RefreshMargin is how long before expiry a token is replaced
	RefreshMargin time.Duration
}

// Client talks to the bitable open API
type Client struct {
	cfg     Config
	api     HTTPClient
	media   HTTPClient
	tokens  *TokenCache
	store   TokenStore
	limiter *rate.Limiter
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the client used for JSON API calls
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) { cl.api = c }
}

// WithMediaClient sets the client used for media downloads. It must not
// follow redirects.
func WithMediaClient(c HTTPClient) Option {
	return func(cl *Client) { cl.media = c }
}

// WithTokenStore sets where the tenant token is cached
func WithTokenStore(s TokenStore) Option {
	return func(cl *Client) { cl.store = s }
}

// WithClock sets the time source for token expiry
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// NewClient creates a Client. Missing identifiers are not an error here;
// calls report ErrNotConfigured instead.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = DefaultRefreshMargin
	}

	c := &Client{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(zap.String("component", "bitable_client")),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		c.api = &http.Client{Timeout: cfg.Timeout}
	}
	if c.media == nil {
		c.media = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(limit, burst)
	c.tokens = NewTokenCache(c.store, c.requestToken, cfg.RefreshMargin, logger)

	return c
}

// HasCredentials reports whether the app credential pair is set
func (c *Client) HasCredentials() bool {
	return c.cfg.AppID != "" && c.cfg.AppSecret != ""
}

// Configured reports whether records can be listed
func (c *Client) Configured() bool {
	return c.HasCredentials() && c.cfg.AppToken != "" && c.cfg.TableID != ""
}

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// requestToken exchanges the app credentials for a tenant access token
func (c *Client) requestToken(ctx context.Context) (string, time.Duration, error) {
	body, err := json.Marshal(tokenRequest{AppID: c.cfg.AppID, AppSecret: c.cfg.AppSecret})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	var resp tokenResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", 0, err
	}
	if resp.Code != 0 {
		return "", 0, &ProviderError{Code: resp.Code, Msg: resp.Msg}
	}

	return resp.TenantAccessToken, time.Duration(resp.Expire) * time.Second, nil
}

type listRecordsResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Items     []domain.RawRecord `json:"items"`
		HasMore   bool               `json:"has_more"`
		PageToken string             `json:"page_token"`
		Total     int                `json:"total"`
	} `json:"data"`
}

// ListRecords returns the first page of the catalog table
func (c *Client) ListRecords(ctx context.Context) ([]domain.RawRecord, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.tokens.GetOrRefresh(ctx, c.now())
		if err != nil {
			return nil, err
		}

		records, err := c.listOnce(ctx, token)
		if err == nil {
			return records, nil
		}

		var perr *ProviderError
		if attempt == 0 && errors.As(err, &perr) && perr.tokenRejected() {
			c.logger.Info("Tenant token rejected, refreshing", zap.Int("code", perr.Code))
			if err := c.tokens.Invalidate(ctx); err != nil {
				c.logger.Warn("Failed to invalidate token", zap.Error(err))
			}
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (c *Client) listOnce(ctx context.Context, token string) ([]domain.RawRecord, error) {
	endpoint := c.cfg.BaseURL + fmt.Sprintf(recordsPathFmt, url.PathEscape(c.cfg.AppToken), url.PathEscape(c.cfg.TableID))
	query := url.Values{"page_size": {strconv.Itoa(c.cfg.PageSize)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build records request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var resp listRecordsResponse
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, &ProviderError{Code: resp.Code, Msg: resp.Msg}
	}

	c.logger.Debug("Listed bitable records",
		zap.Int("count", len(resp.Data.Items)),
		zap.Bool("has_more", resp.Data.HasMore),
	)

	if resp.Data.Items == nil {
		return []domain.RawRecord{}, nil
	}
	return resp.Data.Items, nil
}

// doJSON sends req and decodes the body into out. The provider reports most
// failures in the body, so a non-200 status is only an error when the body
// cannot be decoded.
func (c *Client) doJSON(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// OpenImage requests a provider-hosted resource with the tenant token.
// Redirects are returned as-is; the caller owns the response body.
func (c *Client) OpenImage(ctx context.Context, target string) (*http.Response, error) {
	if !c.HasCredentials() {
		return nil, ErrNotConfigured
	}

	for attempt := 0; ; attempt++ {
		token, err := c.tokens.GetOrRefresh(ctx, c.now())
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build image request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", imageUserAgent)

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := c.media.Do(req)
		if err != nil {
			return nil, fmt.Errorf("image request failed: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			if err := c.tokens.Invalidate(ctx); err != nil {
				c.logger.Warn("Failed to invalidate token", zap.Error(err))
			}
			continue
		}
		return resp, nil
	}
}
