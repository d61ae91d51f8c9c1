package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"
)

// ExportClient fetches exports from the review export function.
type ExportClient struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

func NewExportClient(endpoint, token string, timeout time.Duration) *ExportClient {
	return &ExportClient{
		URL:        endpoint,
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Export returns ErrExportUnavailable, wrapped with the cause, on any
// transport failure or non-2xx answer.
func (ec *ExportClient) Export(ctx context.Context, q ExportQuery) (*ExportResult, error) {
	u, err := url.Parse(ec.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad export url: %v", ErrExportUnavailable, err)
	}
	params := u.Query()
	for k, v := range q.Values() {
		params.Set(k, v)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportUnavailable, err)
	}
	if ec.Token != "" {
		req.Header.Set(InternalTokenHeader, ec.Token)
	}

	resp, err := ec.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrExportUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: export function returned %d", ErrExportUnavailable, resp.StatusCode)
	}

	res := &ExportResult{
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		ArchiveKey:  resp.Header.Get(ArchiveKeyHeader),
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		res.Filename = params["filename"]
	}
	return res, nil
}
