package live

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ServerFrame is one decoded message from the upstream stream. The set of
// variants is closed; decoding rejects anything it does not recognize rather
// than guessing from field shapes.
type ServerFrame interface {
	frame()
}

// TextFrame carries a partial model response.
type TextFrame struct {
	Text string
}

// FunctionCall is one requested tool invocation.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolCallFrame carries one or more requested tool invocations.
type ToolCallFrame struct {
	Calls []FunctionCall
}

// AudioFrame carries model-generated audio bytes.
type AudioFrame struct {
	MimeType string
	Data     []byte
}

// TranscriptionFrame carries a speech transcription. Speaker is "user" for
// input transcription and "assistant" for output transcription.
type TranscriptionFrame struct {
	Text    string
	Speaker string
}

// TurnCompleteFrame marks the end of a model turn.
type TurnCompleteFrame struct{}

// SetupCompleteFrame acknowledges the session handshake.
type SetupCompleteFrame struct{}

func (TextFrame) frame()          {}
func (ToolCallFrame) frame()      {}
func (AudioFrame) frame()         {}
func (TranscriptionFrame) frame() {}
func (TurnCompleteFrame) frame()  {}
func (SetupCompleteFrame) frame() {}

// ClientTurn is a complete user turn: text plus an optional inline blob,
// closed with end-of-turn.
type ClientTurn struct {
	Text string
	Blob *Blob
}

// Blob is a binary media part with its mime type.
type Blob struct {
	MimeType string
	Data     []byte
}

// ToolResponse is the result of one function call, returned to the model.
type ToolResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

type serverEnvelope struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
	ToolCall      *toolCall      `json:"toolCall"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn"`
	TurnComplete        bool           `json:"turnComplete"`
	InputTranscription  *transcription `json:"inputTranscription"`
	OutputTranscription *transcription `json:"outputTranscription"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type transcription struct {
	Text string `json:"text"`
}

type toolCall struct {
	FunctionCalls []functionCall `json:"functionCalls"`
}

type functionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// decodeServerMessage turns one wire message into its ordered frames.
// A single message may carry text parts, transcriptions and the turn-complete
// marker together.
func decodeServerMessage(raw []byte) ([]ServerFrame, error) {
	var env serverEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode server message: %w", err)
	}

	var frames []ServerFrame
	switch {
	case env.SetupComplete != nil:
		frames = append(frames, SetupCompleteFrame{})
	case env.ToolCall != nil:
		calls := make([]FunctionCall, 0, len(env.ToolCall.FunctionCalls))
		for _, fc := range env.ToolCall.FunctionCalls {
			calls = append(calls, FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		frames = append(frames, ToolCallFrame{Calls: calls})
	case env.ServerContent != nil:
		sc := env.ServerContent
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			frames = append(frames, TranscriptionFrame{Text: sc.InputTranscription.Text, Speaker: "user"})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			frames = append(frames, TranscriptionFrame{Text: sc.OutputTranscription.Text, Speaker: "assistant"})
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.Text != "" {
					frames = append(frames, TextFrame{Text: p.Text})
				}
				if p.InlineData != nil {
					data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
					if err != nil {
						return nil, fmt.Errorf("decode inline audio: %w", err)
					}
					frames = append(frames, AudioFrame{MimeType: p.InlineData.MimeType, Data: data})
				}
			}
		}
		if sc.TurnComplete {
			frames = append(frames, TurnCompleteFrame{})
		}
	default:
		return nil, fmt.Errorf("unrecognized server message")
	}
	return frames, nil
}
