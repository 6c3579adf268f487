package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// MaxResults caps how many products a single search surfaces.
const MaxResults = 5

// Item is one product in the catalog.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	ImageURL    string `json:"image_url"`
	Aisle       string `json:"aisle"`
}

// Searcher finds products matching a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Item, error)
}

const defaultPrice = "$9.99"

// Normalize fills the fields a sparse catalog row may be missing so every
// surfaced item renders the same way.
func Normalize(item Item, query string) Item {
	if strings.TrimSpace(item.ID) == "" {
		item.ID = fmt.Sprintf("item-%s", slugify(item.Name, query))
	}
	if strings.TrimSpace(item.Name) == "" {
		item.Name = titleCase(strings.TrimSpace(query))
	}
	if strings.TrimSpace(item.Description) == "" {
		item.Description = fmt.Sprintf("A quality %s product", strings.ToLower(item.Name))
	}
	if strings.TrimSpace(item.Price) == "" {
		item.Price = defaultPrice
	}
	if strings.TrimSpace(item.ImageURL) == "" {
		item.ImageURL = "/static/images/placeholder.png"
	}
	if strings.TrimSpace(item.Aisle) == "" {
		item.Aisle = "General"
	}
	return item
}

// NormalizeAll normalizes and caps a result set.
func NormalizeAll(items []Item, query string) []Item {
	if len(items) > MaxResults {
		items = items[:MaxResults]
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		out = append(out, Normalize(item, query))
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func slugify(parts ...string) string {
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			return strings.ReplaceAll(p, " ", "-")
		}
	}
	return "unknown"
}
