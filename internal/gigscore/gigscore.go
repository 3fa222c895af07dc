// Package gigscore fetches worker credit scores from the scoring service.
package gigscore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Static returns the same score for every account.
type Static int

func (s Static) Score(ctx context.Context, accountID uuid.UUID) (int, error) {
	return int(s), nil
}

// HTTPSource queries GET {base}/v1/scores/{accountID}. Accounts the service
// has no profile for get Default.
type HTTPSource struct {
	BaseURL string
	Default int
	client  *http.Client
}

func NewHTTPSource(baseURL string, def int, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Default: def,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Score(ctx context.Context, accountID uuid.UUID) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/v1/scores/"+accountID.String(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gigscore: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return s.Default, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("gigscore: status %d", resp.StatusCode)
	}
	var out struct {
		Score *int `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("gigscore: decode: %w", err)
	}
	if out.Score == nil {
		return s.Default, nil
	}
	return *out.Score, nil
}
