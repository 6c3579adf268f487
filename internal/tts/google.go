package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rpellerano/gondola/internal/reliability"
)

// GoogleConfig configures the Cloud Text-to-Speech REST client.
type GoogleConfig struct {
	APIKey        string
	BaseURL       string
	LanguageCode  string
	VoiceName     string
	AudioEncoding string
}

// GoogleSynthesizer calls the text:synthesize REST endpoint.
type GoogleSynthesizer struct {
	cfg    GoogleConfig
	client *http.Client
}

func NewGoogleSynthesizer(cfg GoogleConfig) (*GoogleSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tts: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://texttospeech.googleapis.com"
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.AudioEncoding == "" {
		cfg.AudioEncoding = "MP3"
	}
	return &GoogleSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", fmt.Errorf("tts: empty text")
	}

	var reqBody synthesizeRequest
	reqBody.Input.Text = text
	reqBody.Voice.LanguageCode = s.cfg.LanguageCode
	reqBody.Voice.Name = s.cfg.VoiceName
	reqBody.AudioConfig.AudioEncoding = s.cfg.AudioEncoding

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", err
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/text:synthesize"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("build synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("synthesize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, "", &reliability.HTTPError{
			Status: resp.StatusCode,
			Detail: fmt.Sprintf("tts returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var decoded synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, "", fmt.Errorf("decode synthesize response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(decoded.AudioContent)
	if err != nil {
		return nil, "", fmt.Errorf("decode audio content: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("tts: empty audio content")
	}

	return audio, s.Format(), nil
}

// Format reports the lowercase format label for outbound audio events.
func (s *GoogleSynthesizer) Format() string {
	return strings.ToLower(s.cfg.AudioEncoding)
}
