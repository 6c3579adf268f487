package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpellerano/gondola/internal/catalog"
)

type slowSearcher struct {
	delay time.Duration
}

func (s *slowSearcher) Search(ctx context.Context, query string) ([]catalog.Item, error) {
	select {
	case <-time.After(s.delay):
		return []catalog.Item{{Name: "Late Result"}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestExecuteSearchProducts(t *testing.T) {
	e := NewExecutor(&catalog.MockSearcher{Items: []catalog.Item{
		{ID: "p1", Name: "Oat Milk", Price: "$3.49"},
		{ID: "p2", Name: "Almond Milk"},
	}}, time.Second)

	res := e.Execute(context.Background(), SearchProducts, map[string]any{"query": "milk"})
	if res.Err != nil {
		t.Fatalf("Execute() err = %v", res.Err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	products, ok := res.Response["products"].([]map[string]any)
	if !ok {
		t.Fatalf("response missing products: %#v", res.Response)
	}
	if products[0]["name"] != "Oat Milk" {
		t.Fatalf("products[0] = %#v", products[0])
	}
}

func TestExecuteUnknownFunction(t *testing.T) {
	e := NewExecutor(&catalog.MockSearcher{}, time.Second)

	res := e.Execute(context.Background(), "order_pizza", nil)
	if res.Err == nil {
		t.Fatalf("Execute() err = nil, want unsupported function error")
	}
	if _, ok := res.Response["error"]; !ok {
		t.Fatalf("response should carry the error payload: %#v", res.Response)
	}
	if res.Items != nil {
		t.Fatalf("items = %v, want nil", res.Items)
	}
}

func TestExecuteMissingQuery(t *testing.T) {
	e := NewExecutor(&catalog.MockSearcher{}, time.Second)

	res := e.Execute(context.Background(), SearchProducts, map[string]any{"query": "   "})
	if res.Err == nil {
		t.Fatalf("Execute() err = nil, want missing query error")
	}
	if res.Response["error"] != "no query provided" {
		t.Fatalf("response = %#v", res.Response)
	}
}

func TestExecuteSearchFailureStaysInPayload(t *testing.T) {
	boom := errors.New("backend down")
	e := NewExecutor(&catalog.MockSearcher{Err: boom}, time.Second)

	res := e.Execute(context.Background(), SearchProducts, map[string]any{"query": "milk"})
	if !errors.Is(res.Err, boom) {
		t.Fatalf("err = %v, want wrapped backend error", res.Err)
	}
	if _, ok := res.Response["error"]; !ok {
		t.Fatalf("response should carry the error payload: %#v", res.Response)
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := NewExecutor(&slowSearcher{delay: time.Second}, 20*time.Millisecond)

	start := time.Now()
	res := e.Execute(context.Background(), SearchProducts, map[string]any{"query": "milk"})
	if res.Err == nil {
		t.Fatalf("Execute() err = nil, want deadline error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("Execute() did not respect the timeout")
	}
}

func TestDeclarations(t *testing.T) {
	e := NewExecutor(&catalog.MockSearcher{}, time.Second)
	decls := e.Declarations()
	if len(decls) != 1 || decls[0].Name != SearchProducts {
		t.Fatalf("Declarations() = %+v", decls)
	}
}
