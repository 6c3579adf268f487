package live

import "context"

// Conn is one established duplex stream to the upstream service. Receive is
// single-consumer; writes and Close are safe from any goroutine so a forced
// cancellation can unblock a pending Receive.
type Conn interface {
	// SendTurn submits a complete user turn and marks end of turn.
	SendTurn(ctx context.Context, turn ClientTurn) error
	// SendRealtime streams one media blob mid-turn without ending the turn.
	SendRealtime(ctx context.Context, blob Blob) error
	// SendToolResponse returns a function result so generation can resume.
	SendToolResponse(ctx context.Context, resp ToolResponse) error
	// Receive blocks for the next frame. It returns an error once the stream
	// is closed or the context is done.
	Receive(ctx context.Context) (ServerFrame, error)
	Close() error
}

// Dialer opens upstream streams. Dial performs the full handshake and does
// not return until the stream is ready for turns.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// ToolDeclaration describes one function exposed to the model during setup.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}
