// Package addy is the client for the addy.io (formerly AnonAddy) alias
// forwarding API. It lists aliases and deactivates them.
package addy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/ignite/aliasguard/internal/config"
	"github.com/ignite/aliasguard/internal/domain"
	"github.com/ignite/aliasguard/internal/pkg/httpretry"
	"github.com/ignite/aliasguard/internal/pkg/logger"
)

// ErrAliasInactive is returned when Deactivate is handed an alias that is
// already inactive.
var ErrAliasInactive = errors.New("alias is not active")

// Client is an addy.io API client
type Client struct {
	baseURL  string
	pageSize int
	maxPages int

	// listClient issues listing requests without retries; a listing
	// failure aborts the run.
	listClient httpretry.HTTPDoer
	// updateClient retries one transport failure per deactivation.
	updateClient httpretry.HTTPDoer

	log *logger.Logger
}

// NewClient creates a new addy.io API client authenticated with the
// configured bearer token.
func NewClient(cfg config.AddyConfig) *Client {
	base := &http.Client{
		Timeout: cfg.Timeout(),
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   http.DefaultTransport,
		},
	}

	log := logger.With("service", domain.ServiceAliasProvider)
	return &Client{
		baseURL:    cfg.BaseURL,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		listClient: base,
		updateClient: httpretry.NewRetryClient(base, 1,
			httpretry.WithFixedDelay(cfg.RetryDelay()),
			httpretry.WithRetryableStatuses(),
			httpretry.WithLogger(log),
		),
		log: log,
	}
}

// doRequest makes an HTTP request to the addy.io API. A non-nil error means
// no HTTP response was received.
func (c *Client) doRequest(ctx context.Context, doer httpretry.HTTPDoer, method, path string, params url.Values) ([]byte, int, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := doer.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

// ListActiveAliases walks every page of the alias listing and returns the
// aliases that are currently active, in listing order.
func (c *Client) ListActiveAliases(ctx context.Context) ([]domain.Alias, error) {
	c.log.Info("Listing aliases")

	var (
		active []domain.Alias
		total  int
	)

	for page := 1; ; page++ {
		if page > c.maxPages {
			return nil, domain.NewServiceError(domain.ServiceAliasProvider, domain.KindUnexpected, 0,
				fmt.Errorf("alias listing did not end after %d pages", c.maxPages))
		}

		params := url.Values{}
		params.Set("page[number]", strconv.Itoa(page))
		params.Set("page[size]", strconv.Itoa(c.pageSize))

		body, status, err := c.doRequest(ctx, c.listClient, http.MethodGet, "/api/v1/aliases", params)
		if err != nil {
			return nil, transportError(status, err)
		}
		if status != http.StatusOK {
			return nil, statusError(status, body)
		}

		var resp ListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, domain.NewServiceError(domain.ServiceAliasProvider, domain.KindUnexpected, status,
				fmt.Errorf("parsing aliases page %d: %w", page, err))
		}

		total += len(resp.Data)
		for _, a := range resp.Data {
			if a.Active {
				active = append(active, a.ToDomain())
			}
		}

		c.log.Debug("Fetched alias page", "page", page, "last_page", resp.Meta.LastPage, "count", len(resp.Data))

		if resp.terminal() {
			break
		}
	}

	c.log.Info("Retrieved aliases", "total", total, "active", len(active))
	return active, nil
}

// Deactivate marks the alias inactive at the provider. A transport failure
// is retried once after the configured delay.
func (c *Client) Deactivate(ctx context.Context, alias domain.Alias) error {
	if !alias.Active {
		return fmt.Errorf("deactivating %s: %w", alias.ID, ErrAliasInactive)
	}

	c.log.Info("Deactivating alias", "alias_id", alias.ID, "alias", alias.Email)

	path := "/api/v1/active-aliases/" + url.PathEscape(alias.ID)
	body, status, err := c.doRequest(ctx, c.updateClient, http.MethodDelete, path, nil)
	if err != nil {
		return transportError(status, err)
	}
	if status < 200 || status >= 300 {
		return statusError(status, body)
	}

	return nil
}

// TokenDetails returns the details of the configured API token. It is a
// cheap way to confirm the token is accepted.
func (c *Client) TokenDetails(ctx context.Context) (*TokenDetails, error) {
	body, status, err := c.doRequest(ctx, c.listClient, http.MethodGet, "/api/v1/api-token-details", nil)
	if err != nil {
		return nil, transportError(status, err)
	}
	if status != http.StatusOK {
		return nil, statusError(status, body)
	}

	var details TokenDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, domain.NewServiceError(domain.ServiceAliasProvider, domain.KindUnexpected, status,
			fmt.Errorf("parsing token details: %w", err))
	}
	return &details, nil
}

func transportError(status int, err error) *domain.ServiceError {
	return domain.NewServiceError(domain.ServiceAliasProvider, domain.KindNetwork, status, err)
}

func statusError(status int, body []byte) *domain.ServiceError {
	kind := domain.KindUnexpected
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = domain.KindAuth
	}
	return domain.NewServiceError(domain.ServiceAliasProvider, kind, status,
		fmt.Errorf("API error: %s", truncate(body, 200)))
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
