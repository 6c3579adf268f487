package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const bidiPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// GeminiConfig configures the upstream Gemini Live websocket client.
type GeminiConfig struct {
	APIKey             string
	WSBaseURL          string
	Model              string
	SystemInstruction  string
	Voice              string
	ResponseModalities []string
	Tools              []ToolDeclaration
}

// GeminiDialer opens BidiGenerateContent streams.
type GeminiDialer struct {
	cfg GeminiConfig
}

func NewGeminiDialer(cfg GeminiConfig) (*GeminiDialer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: missing API key")
	}
	if cfg.WSBaseURL == "" {
		return nil, fmt.Errorf("gemini: missing websocket base URL")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini: missing model")
	}
	if len(cfg.ResponseModalities) == 0 {
		cfg.ResponseModalities = []string{"TEXT"}
	}
	return &GeminiDialer{cfg: cfg}, nil
}

// Dial connects, sends the setup message and waits for the setup
// acknowledgement. The caller bounds the whole handshake via ctx.
func (d *GeminiDialer) Dial(ctx context.Context) (Conn, error) {
	endpoint := d.cfg.WSBaseURL + bidiPath + "?key=" + url.QueryEscape(d.cfg.APIKey)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gemini dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("gemini dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	conn := &geminiConn{ws: ws}
	if err := conn.writeJSON(ctx, d.setupMessage()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gemini setup: %w", err)
	}
	if err := conn.awaitSetupComplete(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gemini setup: %w", err)
	}
	return conn, nil
}

func (d *GeminiDialer) setupMessage() setupMessage {
	setup := setupPayload{
		Model: "models/" + d.cfg.Model,
		GenerationConfig: generationConfig{
			ResponseModalities: d.cfg.ResponseModalities,
		},
		OutputAudioTranscription: &struct{}{},
		InputAudioTranscription:  &struct{}{},
	}
	if d.cfg.SystemInstruction != "" {
		setup.SystemInstruction = &wireContent{
			Parts: []part{{Text: d.cfg.SystemInstruction}},
		}
	}
	if d.cfg.Voice != "" && containsModality(d.cfg.ResponseModalities, "AUDIO") {
		setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: d.cfg.Voice},
			},
		}
	}
	if len(d.cfg.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(d.cfg.Tools))
		for _, t := range d.cfg.Tools {
			decls = append(decls, functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		setup.Tools = []toolsEntry{{FunctionDeclarations: decls}}
	}
	return setupMessage{Setup: setup}
}

func containsModality(mods []string, want string) bool {
	for _, m := range mods {
		if m == want {
			return true
		}
	}
	return false
}

// geminiConn is one live stream. Receive is single-consumer; writes take the
// write mutex because tool responses and realtime frames can race.
type geminiConn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error

	pending []ServerFrame
}

func (c *geminiConn) SendTurn(ctx context.Context, turn ClientTurn) error {
	parts := make([]part, 0, 2)
	if turn.Text != "" {
		parts = append(parts, part{Text: turn.Text})
	}
	if turn.Blob != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: turn.Blob.MimeType,
			Data:     base64.StdEncoding.EncodeToString(turn.Blob.Data),
		}})
	}
	msg := clientContentMessage{
		ClientContent: clientContent{
			Turns:        []turnContent{{Role: "user", Parts: parts}},
			TurnComplete: true,
		},
	}
	return c.writeJSON(ctx, msg)
}

func (c *geminiConn) SendRealtime(ctx context.Context, blob Blob) error {
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{
				MimeType: blob.MimeType,
				Data:     base64.StdEncoding.EncodeToString(blob.Data),
			}},
		},
	}
	return c.writeJSON(ctx, msg)
}

func (c *geminiConn) SendToolResponse(ctx context.Context, resp ToolResponse) error {
	msg := toolResponseMessage{
		ToolResponse: toolResponsePayload{
			FunctionResponses: []functionResponse{{
				ID:       resp.ID,
				Name:     resp.Name,
				Response: resp.Response,
			}},
		},
	}
	return c.writeJSON(ctx, msg)
}

// Receive returns the next decoded frame. Close from another goroutine
// unblocks a pending read.
func (c *geminiConn) Receive(ctx context.Context) (ServerFrame, error) {
	for {
		if len(c.pending) > 0 {
			frame := c.pending[0]
			c.pending = c.pending[1:]
			return frame, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("gemini read: %w", err)
		}
		frames, err := decodeServerMessage(raw)
		if err != nil {
			return nil, err
		}
		c.pending = frames
	}
}

func (c *geminiConn) awaitSetupComplete(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.ws.SetReadDeadline(deadline); err != nil {
			return err
		}
		defer c.ws.SetReadDeadline(time.Time{})
	}
	frame, err := c.Receive(ctx)
	if err != nil {
		return err
	}
	if _, ok := frame.(SetupCompleteFrame); !ok {
		return fmt.Errorf("unexpected frame before setup acknowledgement")
	}
	return nil
}

func (c *geminiConn) writeJSON(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.ws.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *geminiConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *wireContent     `json:"systemInstruction,omitempty"`
	Tools                    []toolsEntry     `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type wireContent struct {
	Parts []part `json:"parts"`
}

type toolsEntry struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []turnContent `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

type turnContent struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []inlineData `json:"mediaChunks"`
}

type toolResponseMessage struct {
	ToolResponse toolResponsePayload `json:"toolResponse"`
}

type toolResponsePayload struct {
	FunctionResponses []functionResponse `json:"functionResponses"`
}

type functionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}
