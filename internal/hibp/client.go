// Package hibp is the breach oracle: a client for the Have I Been Pwned v3
// API that reports the breaches an address appears in.
//
// The client never sleeps. A 429 is returned as a rate-limited
// domain.ServiceError carrying the wait the service asked for, and pacing is
// left to the caller.
package hibp

import (
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

	"github.com/ignite/aliasguard/internal/config"
	"github.com/ignite/aliasguard/internal/domain"
	"github.com/ignite/aliasguard/internal/pkg/httpretry"
	"github.com/ignite/aliasguard/internal/pkg/logger"
)

// ErrInvalidAddress is returned, without a request, for an address that is
// not a syntactically valid email.
var ErrInvalidAddress = errors.New("invalid email address")

// Client is a Have I Been Pwned API client
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient httpretry.HTTPDoer

	// fallbackRetryAfter is used when a 429 carries no usable Retry-After.
	fallbackRetryAfter time.Duration
	now                func() time.Time

	log *logger.Logger
}

// NewClient creates a new HIBP API client
func NewClient(cfg config.HIBPConfig) *Client {
	return &Client{
		baseURL:            cfg.BaseURL,
		apiKey:             cfg.Token,
		userAgent:          cfg.UserAgent,
		httpClient:         &http.Client{Timeout: cfg.Timeout()},
		fallbackRetryAfter: cfg.MinInterval(),
		now:                time.Now,
		log:                logger.With("service", domain.ServiceBreachOracle),
	}
}

// Check returns the breaches address appears in, in the order the service
// lists them. An address with no breaches yields an empty slice and no error.
func (c *Client) Check(ctx context.Context, address string) ([]domain.BreachRecord, error) {
	if !domain.ValidEmail(address) {
		return nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindUnexpected, 0,
			fmt.Errorf("%w: %q", ErrInvalidAddress, address))
	}

	path := "/api/v3/breachedaccount/" + url.PathEscape(address) + "?truncateResponse=false"
	resp, body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var breaches []Breach
		if err := json.Unmarshal(body, &breaches); err != nil {
			return nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindUnexpected, resp.StatusCode,
				fmt.Errorf("parsing breaches: %w", err))
		}
		records := make([]domain.BreachRecord, 0, len(breaches))
		for _, b := range breaches {
			records = append(records, b.ToDomain())
		}
		c.log.Debug("Breaches found", "email", address, "count", len(records))
		return records, nil

	case http.StatusNotFound:
		// Not pwned
		return []domain.BreachRecord{}, nil

	case http.StatusTooManyRequests:
		wait := c.retryAfter(resp.Header.Get("Retry-After"))
		c.log.Warn("Rate limited", "retry_after", wait)
		se := domain.NewServiceError(domain.ServiceBreachOracle, domain.KindRateLimited, resp.StatusCode, nil)
		if msg := strings.TrimSpace(string(body)); msg != "" {
			se.Err = errors.New(msg)
		}
		se.RetryAfter = wait
		return nil, se

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindAuth, resp.StatusCode,
			fmt.Errorf("API error: %s", strings.TrimSpace(string(body))))

	default:
		return nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindUnexpected, resp.StatusCode,
			fmt.Errorf("API error: %s", strings.TrimSpace(string(body))))
	}
}

// doRequest issues an authenticated GET. Failures before a complete
// response is read are returned as a ServiceError.
func (c *Client) doRequest(ctx context.Context, path string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindUnexpected, 0,
			fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("hibp-api-key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindNetwork, 0,
			fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindNetwork, resp.StatusCode,
			fmt.Errorf("reading response: %w", err))
	}
	return resp, body, nil
}

// SubscriptionStatus returns the plan attached to the API key.
func (c *Client) SubscriptionStatus(ctx context.Context) (*Subscription, error) {
	resp, body, err := c.doRequest(ctx, "/api/v3/subscription/status")
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindAuth, resp.StatusCode,
			fmt.Errorf("API error: %s", strings.TrimSpace(string(body))))
	default:
		return nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindUnexpected, resp.StatusCode,
			fmt.Errorf("API error: %s", strings.TrimSpace(string(body))))
	}

	var sub Subscription
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, domain.NewServiceError(domain.ServiceBreachOracle, domain.KindUnexpected, resp.StatusCode,
			fmt.Errorf("parsing subscription: %w", err))
	}
	return &sub, nil
}

// retryAfter parses a Retry-After header given either in seconds or as an
// HTTP date.
func (c *Client) retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return c.fallbackRetryAfter
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := at.Sub(c.now()); d > 0 {
			return d
		}
		return 0
	}
	return c.fallbackRetryAfter
}
