package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPClient submits transfers to the payout gateway's REST API. The gateway
// reports the final outcome later through the payout callback endpoint.
type HTTPClient struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
	client      *http.Client
	log         *slog.Logger
}

func NewHTTPClient(baseURL, apiKey, callbackURL string, timeout time.Duration, log *slog.Logger) *HTTPClient {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		CallbackURL: callbackURL,
		client:      &http.Client{Timeout: timeout},
		log:         log,
	}
}

var _ Client = (*HTTPClient)(nil)

type transferRequest struct {
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount"`
	Speed       string `json:"speed"`
	Beneficiary string `json:"beneficiary"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type transferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (c *HTTPClient) Submit(ctx context.Context, t Transfer) (*Receipt, error) {
	body, err := json.Marshal(transferRequest{
		Reference:   t.PayoutID.String(),
		Amount:      t.Amount,
		Speed:       t.Type,
		Beneficiary: t.AccountID.String(),
		CallbackURL: c.CallbackURL,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Idempotency-Key", t.IdempotencyKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	c.log.Info("rail transfer submitted", "payout_id", t.PayoutID, "status_code", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: gateway returned %d: %s", ErrRejected, resp.StatusCode, string(respBody))
	}
	var out transferResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: decode gateway response: %v", ErrUnavailable, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: gateway response missing id", ErrUnavailable)
	}
	status := StatusAccepted
	if strings.EqualFold(out.Status, StatusCompleted) || strings.EqualFold(out.Status, "success") {
		status = StatusCompleted
	}
	return &Receipt{Reference: out.ID, Status: status}, nil
}
