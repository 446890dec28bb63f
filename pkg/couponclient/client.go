/**
 * @description
 * This package provides a read-only client for the platform's promotional
 * catalog service. The wallet-service merges active coupons into balance
 * display responses but never mutates coupon state.
 */
package couponclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the coupon catalog service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new coupon catalog client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Coupon is the catalog service's wire representation of a promotion.
type Coupon struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue int64     `json:"discount_value"`
	ExpiresAt     time.Time `json:"expires_at"`
	UsageLimit    int       `json:"usage_limit"`
	UsedCount     int       `json:"used_count"`
}

type couponListResponse struct {
	Data []Coupon `json:"data"`
}

// ActiveCoupons fetches the owner's currently active coupons.
func (c *Client) ActiveCoupons(ctx context.Context, ownerID string) ([]Coupon, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("coupon service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/coupons/active?owner_id=%s", c.baseURL, ownerID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coupon request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read coupon response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("coupon service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed couponListResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse coupon response: %w", err)
	}
	return parsed.Data, nil
}
