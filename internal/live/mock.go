package live

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockDialer is an in-process stand-in for the upstream service, used by
// tests and as the fallback when no API key is configured.
type MockDialer struct {
	// DialErr, when set, makes every handshake fail.
	DialErr error
	// Script maps a user turn to the frames the stream replies with. Nil
	// selects the default echo script.
	Script func(turn ClientTurn) []ServerFrame
	// ToolScript maps a tool response to the follow-up frames. Nil yields a
	// bare turn-complete.
	ToolScript func(resp ToolResponse) []ServerFrame
}

func (d *MockDialer) Dial(ctx context.Context) (Conn, error) {
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	script := d.Script
	if script == nil {
		script = defaultScript
	}
	toolScript := d.ToolScript
	if toolScript == nil {
		toolScript = func(ToolResponse) []ServerFrame {
			return []ServerFrame{TurnCompleteFrame{}}
		}
	}
	return &MockConn{
		frames:     make(chan ServerFrame, 64),
		closed:     make(chan struct{}),
		script:     script,
		toolScript: toolScript,
	}, nil
}

// MockConn replays scripted frames for each turn.
type MockConn struct {
	frames     chan ServerFrame
	closed     chan struct{}
	closeOnce  sync.Once
	script     func(turn ClientTurn) []ServerFrame
	toolScript func(resp ToolResponse) []ServerFrame

	mu       sync.Mutex
	realtime []Blob
}

func (c *MockConn) SendTurn(ctx context.Context, turn ClientTurn) error {
	return c.push(ctx, c.script(turn))
}

func (c *MockConn) SendRealtime(ctx context.Context, blob Blob) error {
	select {
	case <-c.closed:
		return fmt.Errorf("mock stream closed")
	default:
	}
	c.mu.Lock()
	c.realtime = append(c.realtime, blob)
	c.mu.Unlock()
	return nil
}

func (c *MockConn) SendToolResponse(ctx context.Context, resp ToolResponse) error {
	return c.push(ctx, c.toolScript(resp))
}

func (c *MockConn) Receive(ctx context.Context) (ServerFrame, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-c.closed:
		return nil, fmt.Errorf("mock stream closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *MockConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// RealtimeBlobs reports the mid-turn media received so far.
func (c *MockConn) RealtimeBlobs() []Blob {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Blob, len(c.realtime))
	copy(out, c.realtime)
	return out
}

func (c *MockConn) push(ctx context.Context, frames []ServerFrame) error {
	for _, frame := range frames {
		select {
		case c.frames <- frame:
		case <-c.closed:
			return fmt.Errorf("mock stream closed")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// defaultScript echoes the turn back word by word and requests a product
// search when the text looks like a shopping query.
func defaultScript(turn ClientTurn) []ServerFrame {
	text := strings.TrimSpace(turn.Text)
	lower := strings.ToLower(text)
	if strings.Contains(lower, "find") || strings.Contains(lower, "search") || strings.Contains(lower, "show me") {
		return []ServerFrame{
			ToolCallFrame{Calls: []FunctionCall{{
				ID:   "mock-call-1",
				Name: "search_products",
				Args: map[string]any{"query": text},
			}}},
		}
	}
	var frames []ServerFrame
	words := strings.Fields("You said: " + text)
	for i, w := range words {
		if i < len(words)-1 {
			w += " "
		}
		frames = append(frames, TextFrame{Text: w})
	}
	frames = append(frames, TurnCompleteFrame{})
	return frames
}
