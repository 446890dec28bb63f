/**
 * @description
 * This package provides a client for the external settlement provider that
 * executes approved withdrawals. It encapsulates the HTTP calls for
 * initiating a payout and for polling its status.
 *
 * The wallet-service only ever calls this client after the ledger-side
 * settlement has been durably committed; the provider's own outcome is
 * reported out-of-band and reconciled separately.
 */
package payoutclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the settlement provider's payout API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new payout provider client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// payoutRequest is the provider's wire format for initiating a transfer.
type payoutRequest struct {
	Reference   string            `json:"reference"` // our withdrawal id; the provider dedupes on it
	Amount      int64             `json:"amount"`
	Channel     string            `json:"channel"`
	AccountInfo map[string]string `json:"account_info"`
}

type payoutResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
	Message string `json:"message"`
}

// InitiatePayout asks the provider to transfer the amount to the payout
// channel described by accountInfo. It returns the provider's transfer
// reference. The withdrawal id is sent as the provider-side dedupe reference,
// so a retried call cannot produce a second transfer.
func (c *Client) InitiatePayout(ctx context.Context, withdrawalID string, amount int64, methodID string, accountInfo map[string]string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("payout provider base url is empty")
	}

	url := fmt.Sprintf("%s/v1/payouts", c.baseURL)

	body, err := json.Marshal(payoutRequest{
		Reference:   withdrawalID,
		Amount:      amount,
		Channel:     methodID,
		AccountInfo: accountInfo,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payout request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read payout response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("payout provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed payoutResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse payout response: %w", err)
	}
	if parsed.Data.ID == "" {
		return "", fmt.Errorf("payout provider response missing transfer id: %s", string(respBody))
	}
	return parsed.Data.ID, nil
}

// GetPayoutStatus polls the provider for a transfer's current status. Used by
// operational tooling when the out-of-band result never arrives.
func (c *Client) GetPayoutStatus(ctx context.Context, providerRef string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("payout provider base url is empty")
	}

	url := fmt.Sprintf("%s/v1/payouts/%s", c.baseURL, providerRef)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payout status request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read payout status response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("payout provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed payoutResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse payout status response: %w", err)
	}
	return parsed.Data.Status, nil
}
