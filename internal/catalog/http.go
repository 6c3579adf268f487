package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rpellerano/gondola/internal/reliability"
)

// HTTPSearcher queries an external product search API
// (GET {base}/api/search?query=...).
type HTTPSearcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSearcher(baseURL string) *HTTPSearcher {
	return &HTTPSearcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

type searchResponse struct {
	Results []Item `json:"results"`
}

func (s *HTTPSearcher) Search(ctx context.Context, query string) ([]Item, error) {
	endpoint := s.baseURL + "/api/search?query=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &reliability.HTTPError{
			Status: resp.StatusCode,
			Detail: fmt.Sprintf("search API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return NormalizeAll(decoded.Results, query), nil
}
