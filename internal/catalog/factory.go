package catalog

import (
	"context"
	"fmt"
	"strings"
)

// NewSearcher selects a backend by mode. Mode "auto" prefers Postgres when a
// database URL is configured, then the HTTP search API, then the mock.
func NewSearcher(ctx context.Context, mode, searchURL, databaseURL string) (Searcher, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "postgres":
		return NewPostgresSearcher(ctx, databaseURL)
	case "http":
		if strings.TrimSpace(searchURL) == "" {
			return nil, fmt.Errorf("search mode http requires SEARCH_URL")
		}
		return NewHTTPSearcher(searchURL), nil
	case "mock":
		return &MockSearcher{}, nil
	default: // auto
		if strings.TrimSpace(databaseURL) != "" {
			return NewPostgresSearcher(ctx, databaseURL)
		}
		if strings.TrimSpace(searchURL) != "" {
			return NewHTTPSearcher(searchURL), nil
		}
		return &MockSearcher{}, nil
	}
}
