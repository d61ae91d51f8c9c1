package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// InternalTokenHeader carries the shared secret between the app and its functions.
const InternalTokenHeader = "X-Internal-Token"

// StatsClient calls the out-of-process rating aggregate function.
type StatsClient struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

func NewStatsClient(url, token string, timeout time.Duration) *StatsClient {
	return &StatsClient{
		URL:        url,
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (sc *StatsClient) UpdateRating(ctx context.Context, itemID, rating int) error {
	body, err := json.Marshal(map[string]int{
		"item_id": itemID,
		"rating":  rating,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build stats request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.Token != "" {
		req.Header.Set(InternalTokenHeader, sc.Token)
	}

	resp, err := sc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("call stats function: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stats function returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
