package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeUserMessage      MessageType = "user_message"
	TypeMediaFrame       MessageType = "media_frame"
	TypeClientControl    MessageType = "client_control"
	TypeTextDelta        MessageType = "text_delta"
	TypeToolResult       MessageType = "tool_result"
	TypeAudioChunk       MessageType = "audio_chunk"
	TypeAudioStreamEnd   MessageType = "audio_stream_end"
	TypeTranscription    MessageType = "transcription"
	TypeResponseComplete MessageType = "response_complete"
	TypeErrorEvent       MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// UserMessage is a client turn: text plus an optional inline media frame
// encoded as a data URL (data:image/jpeg;base64,...).
type UserMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	Frame     string      `json:"frame,omitempty"`
}

// MediaFrame is a standalone frame streamed mid-turn without ending it.
type MediaFrame struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Frame     string      `json:"frame"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type TextDelta struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

// ToolItem is one product surfaced by the search tool.
type ToolItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	ImageURL    string `json:"image_url"`
	Aisle       string `json:"aisle"`
}

type ToolResult struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	ToolName  string      `json:"tool_name"`
	Items     []ToolItem  `json:"items"`
}

type AudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	Format      string      `json:"format,omitempty"`
	AudioBase64 string      `json:"audio_base64"`
}

type AudioStreamEnd struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type Transcription struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	Speaker   string      `json:"speaker"`
}

type ResponseComplete struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes one websocket frame from a client into its
// typed variant, rejecting payloads with missing required fields.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserMessage:
		var msg UserMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || (strings.TrimSpace(msg.Text) == "" && msg.Frame == "") {
			return nil, errors.New("invalid user_message")
		}
		return msg, nil
	case TypeMediaFrame:
		var msg MediaFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Frame == "" {
			return nil, errors.New("invalid media_frame")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
