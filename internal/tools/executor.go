package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpellerano/gondola/internal/catalog"
	"github.com/rpellerano/gondola/internal/live"
)

// SearchProducts is the function name the model calls to look items up.
const SearchProducts = "search_products"

// Result is the outcome of one tool invocation. Response always holds the
// payload returned to the model; failures travel inside it rather than as a
// session fault. Items is populated only by the product search tool.
type Result struct {
	Response map[string]any
	Items    []catalog.Item
	Err      error
}

// Executor dispatches model function calls. Every call runs under the
// configured timeout so a stuck backend cannot stall the session's turn
// forever.
type Executor struct {
	searcher catalog.Searcher
	timeout  time.Duration
}

func NewExecutor(searcher catalog.Searcher, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Executor{searcher: searcher, timeout: timeout}
}

// Declarations describes the exposed functions for the upstream setup
// message.
func (e *Executor) Declarations() []live.ToolDeclaration {
	return []live.ToolDeclaration{{
		Name:        SearchProducts,
		Description: "Search the product catalog and return matching items.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Free-text description of the products to find.",
				},
			},
			"required": []string{"query"},
		},
	}}
}

// Execute runs one function call and always produces a model-facing response.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) Result {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch name {
	case SearchProducts:
		return e.search(ctx, args)
	default:
		err := fmt.Errorf("unsupported function: %s", name)
		return Result{
			Response: map[string]any{"error": err.Error()},
			Err:      err,
		}
	}
}

func (e *Executor) search(ctx context.Context, args map[string]any) Result {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		err := errors.New("no query provided")
		return Result{
			Response: map[string]any{"error": err.Error()},
			Err:      err,
		}
	}

	items, err := e.searcher.Search(ctx, query)
	if err != nil {
		return Result{
			Response: map[string]any{"error": fmt.Sprintf("search failed: %v", err)},
			Err:      err,
		}
	}

	products := make([]map[string]any, 0, len(items))
	for _, it := range items {
		products = append(products, map[string]any{
			"id":          it.ID,
			"name":        it.Name,
			"description": it.Description,
			"price":       it.Price,
			"image_url":   it.ImageURL,
			"aisle":       it.Aisle,
		})
	}
	return Result{
		Response: map[string]any{"products": products},
		Items:    items,
	}
}
