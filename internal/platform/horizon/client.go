// Package horizon implements the ledger client against the Horizon HTTP API.
// It is stateless and read-only: one call fetches one page of payment
// history for an account, optionally resuming from a paging token.
package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/luminapay-payment-monitor/internal/config"
	"github.com/luminapay-payment-monitor/internal/domain/ledger"
)

// Client queries account payment history from a Horizon server
type Client struct {
	httpClient *http.Client
	baseURL    string
	pageLimit  int
	logger     *slog.Logger
}

var _ ledger.Client = (*Client)(nil)

// NewClient creates a Horizon client from configuration. The configured
// timeout bounds every history request; a timed-out call surfaces as
// ledger.ErrUnavailable.
func NewClient(logger *slog.Logger, cfg *config.HorizonConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		pageLimit:  cfg.PageLimit,
		logger:     logger,
	}
}

// paymentsPage mirrors Horizon's HAL envelope for collection responses
type paymentsPage struct {
	Embedded struct {
		Records []ledger.TransactionRecord `json:"records"`
	} `json:"_embedded"`
}

// FetchRecentPayments returns the most recent page of payment records for
// the address, newest first. When cursor is non-nil the query is scoped
// server-side to records after that token; when nil the page has no lower
// bound. An unfunded account (404) is a soft no-data case and yields an
// empty page.
func (c *Client) FetchRecentPayments(ctx context.Context, address string, cursor *string) ([]ledger.TransactionRecord, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/payments", c.baseURL, url.PathEscape(address))

	params := url.Values{}
	params.Set("order", "desc")
	params.Set("limit", strconv.Itoa(c.pageLimit))
	if cursor != nil && *cursor != "" {
		params.Set("cursor", *cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build horizon request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Horizon request failed", "address", address, "error", err)
		return nil, fmt.Errorf("horizon request for %s: %w: %v", address, ledger.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		// Account not yet funded on the ledger; nothing to scan
		c.logger.Debug("Horizon account not found, treating as empty page", "address", address)
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		c.logger.Warn("Horizon unavailable", "address", address, "status", resp.StatusCode)
		return nil, fmt.Errorf("horizon returned status %d for %s: %w", resp.StatusCode, address, ledger.ErrUnavailable)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("horizon returned unexpected status %d for %s: %s", resp.StatusCode, address, string(body))
	}

	var page paymentsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		c.logger.Error("Failed to decode horizon payments page", "address", address, "error", err)
		return nil, fmt.Errorf("failed to decode horizon payments page for %s: %w", address, err)
	}

	c.logger.Debug("Fetched payment history page",
		"address", address,
		"records", len(page.Embedded.Records),
		"cursored", cursor != nil,
	)

	return page.Embedded.Records, nil
}
