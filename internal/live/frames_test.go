package live

import (
	"bytes"
	"testing"
)

func TestDecodeSetupComplete(t *testing.T) {
	frames, err := decodeServerMessage([]byte(`{"setupComplete":{}}`))
	if err != nil {
		t.Fatalf("decodeServerMessage() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	if _, ok := frames[0].(SetupCompleteFrame); !ok {
		t.Fatalf("frame = %T, want SetupCompleteFrame", frames[0])
	}
}

func TestDecodeTextAndTurnComplete(t *testing.T) {
	raw := []byte(`{"serverContent":{"modelTurn":{"parts":[{"text":"Hi "},{"text":"there!"}]},"turnComplete":true}}`)
	frames, err := decodeServerMessage(raw)
	if err != nil {
		t.Fatalf("decodeServerMessage() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if f, ok := frames[0].(TextFrame); !ok || f.Text != "Hi " {
		t.Fatalf("frames[0] = %#v, want TextFrame{Hi }", frames[0])
	}
	if f, ok := frames[1].(TextFrame); !ok || f.Text != "there!" {
		t.Fatalf("frames[1] = %#v, want TextFrame{there!}", frames[1])
	}
	if _, ok := frames[2].(TurnCompleteFrame); !ok {
		t.Fatalf("frames[2] = %T, want TurnCompleteFrame", frames[2])
	}
}

func TestDecodeToolCall(t *testing.T) {
	raw := []byte(`{"toolCall":{"functionCalls":[{"id":"c1","name":"search_products","args":{"query":"apples"}}]}}`)
	frames, err := decodeServerMessage(raw)
	if err != nil {
		t.Fatalf("decodeServerMessage() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	tc, ok := frames[0].(ToolCallFrame)
	if !ok {
		t.Fatalf("frame = %T, want ToolCallFrame", frames[0])
	}
	if len(tc.Calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(tc.Calls))
	}
	call := tc.Calls[0]
	if call.ID != "c1" || call.Name != "search_products" {
		t.Fatalf("call = %+v", call)
	}
	if q, _ := call.Args["query"].(string); q != "apples" {
		t.Fatalf("query arg = %q, want apples", q)
	}
}

func TestDecodeAudioAndTranscriptions(t *testing.T) {
	raw := []byte(`{"serverContent":{
		"inputTranscription":{"text":"hello"},
		"outputTranscription":{"text":"hi!"},
		"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAEC"}}]}
	}}`)
	frames, err := decodeServerMessage(raw)
	if err != nil {
		t.Fatalf("decodeServerMessage() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if f, ok := frames[0].(TranscriptionFrame); !ok || f.Speaker != "user" || f.Text != "hello" {
		t.Fatalf("frames[0] = %#v, want user transcription", frames[0])
	}
	if f, ok := frames[1].(TranscriptionFrame); !ok || f.Speaker != "assistant" || f.Text != "hi!" {
		t.Fatalf("frames[1] = %#v, want assistant transcription", frames[1])
	}
	af, ok := frames[2].(AudioFrame)
	if !ok {
		t.Fatalf("frames[2] = %T, want AudioFrame", frames[2])
	}
	if af.MimeType != "audio/pcm;rate=24000" || !bytes.Equal(af.Data, []byte{0, 1, 2}) {
		t.Fatalf("audio frame = %+v", af)
	}
}

func TestDecodeRejectsUnknown(t *testing.T) {
	if _, err := decodeServerMessage([]byte(`{"somethingElse":{}}`)); err == nil {
		t.Fatalf("decodeServerMessage() = nil error, want failure")
	}
	if _, err := decodeServerMessage([]byte(`not json`)); err == nil {
		t.Fatalf("decodeServerMessage() = nil error, want failure")
	}
}
