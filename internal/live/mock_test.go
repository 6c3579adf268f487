package live

import (
	"context"
	"testing"
)

func TestMockDialerEchoTurn(t *testing.T) {
	d := &MockDialer{}
	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.SendTurn(context.Background(), ClientTurn{Text: "hello"}); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}

	var text string
	for {
		frame, err := conn.Receive(context.Background())
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		if _, done := frame.(TurnCompleteFrame); done {
			break
		}
		tf, ok := frame.(TextFrame)
		if !ok {
			t.Fatalf("unexpected frame %T", frame)
		}
		text += tf.Text
	}
	if text != "You said: hello" {
		t.Fatalf("echo = %q, want %q", text, "You said: hello")
	}
}

func TestMockDialerToolCall(t *testing.T) {
	d := &MockDialer{}
	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.SendTurn(context.Background(), ClientTurn{Text: "find me apples"}); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}

	frame, err := conn.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	tc, ok := frame.(ToolCallFrame)
	if !ok {
		t.Fatalf("frame = %T, want ToolCallFrame", frame)
	}
	if tc.Calls[0].Name != "search_products" {
		t.Fatalf("tool = %q, want search_products", tc.Calls[0].Name)
	}

	if err := conn.SendToolResponse(context.Background(), ToolResponse{ID: tc.Calls[0].ID, Name: tc.Calls[0].Name, Response: map[string]any{"products": []any{}}}); err != nil {
		t.Fatalf("SendToolResponse() error = %v", err)
	}
	frame, err = conn.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if _, ok := frame.(TurnCompleteFrame); !ok {
		t.Fatalf("frame = %T, want TurnCompleteFrame", frame)
	}
}

func TestMockConnClosedReceive(t *testing.T) {
	d := &MockDialer{}
	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	conn.Close()
	if _, err := conn.Receive(context.Background()); err == nil {
		t.Fatalf("Receive() on closed stream = nil error, want failure")
	}
}
