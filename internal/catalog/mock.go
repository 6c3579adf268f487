package catalog

import (
	"context"
	"fmt"
	"strings"
)

// MockSearcher returns deterministic items derived from the query. Used in
// tests and when no search backend is configured.
type MockSearcher struct {
	// Items, when set, is returned verbatim (after normalization).
	Items []Item
	// Err, when set, makes every search fail.
	Err error
}

func (m *MockSearcher) Search(ctx context.Context, query string) ([]Item, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Items != nil {
		return NormalizeAll(m.Items, query), nil
	}

	base := strings.TrimSpace(query)
	if base == "" {
		base = "product"
	}
	items := make([]Item, 0, 3)
	for i := 1; i <= 3; i++ {
		items = append(items, Item{
			ID:   fmt.Sprintf("mock-%s-%d", slugify(base), i),
			Name: fmt.Sprintf("%s %d", titleCase(base), i),
		})
	}
	return NormalizeAll(items, query), nil
}
