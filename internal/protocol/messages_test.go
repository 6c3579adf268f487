package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want MessageType
	}{
		{
			name: "user message with text",
			raw:  `{"type":"user_message","session_id":"s1","text":"hello"}`,
			want: TypeUserMessage,
		},
		{
			name: "user message with frame only",
			raw:  `{"type":"user_message","session_id":"s1","text":"","frame":"data:image/jpeg;base64,aGk="}`,
			want: TypeUserMessage,
		},
		{
			name: "media frame",
			raw:  `{"type":"media_frame","session_id":"s1","frame":"data:image/jpeg;base64,aGk="}`,
			want: TypeMediaFrame,
		},
		{
			name: "client control",
			raw:  `{"type":"client_control","session_id":"s1","action":"end"}`,
			want: TypeClientControl,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParseClientMessage([]byte(tc.raw))
			if err != nil {
				t.Fatalf("ParseClientMessage() error = %v", err)
			}
			var got MessageType
			switch m := parsed.(type) {
			case UserMessage:
				got = m.Type
			case MediaFrame:
				got = m.Type
			case ClientControl:
				got = m.Type
			default:
				t.Fatalf("unexpected variant %T", parsed)
			}
			if got != tc.want {
				t.Fatalf("type = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseClientMessageRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"unknown type", `{"type":"text_delta","session_id":"s1","text":"x"}`},
		{"user message without session", `{"type":"user_message","text":"hello"}`},
		{"user message without content", `{"type":"user_message","session_id":"s1","text":"   "}`},
		{"media frame without frame", `{"type":"media_frame","session_id":"s1"}`},
		{"control without action", `{"type":"client_control","session_id":"s1"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseClientMessage([]byte(tc.raw)); err == nil {
				t.Fatalf("ParseClientMessage() = nil error, want failure")
			}
		})
	}
}

func TestParseClientMessageUnsupportedType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"bogus"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}
