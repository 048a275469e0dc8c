package speechsynth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result carries rendered audio, or NotConfigured when no API key is set so
// callers can fall back to client-side synthesis.
type Result struct {
	Audio         []byte
	ContentType   string
	NotConfigured bool
}

// Renderer renders spoken audio for a question text. One-shot; the interview
// flow never depends on its success.
type Renderer interface {
	Render(ctx context.Context, text string) (Result, error)
}

const (
	elevenLabsEndpoint  = "https://api.elevenlabs.io/v1/text-to-speech/"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"
	elevenLabsModelID   = "eleven_monolingual_v1"
	maxRenderedAudioLen = 8 << 20
)

type ElevenLabs struct {
	apiKey  string
	voiceID string
	http    *http.Client
}

func NewElevenLabs(apiKey, voiceID string) *ElevenLabs {
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	return &ElevenLabs{
		apiKey:  apiKey,
		voiceID: voiceID,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *ElevenLabs) Render(ctx context.Context, text string) (Result, error) {
	if e.apiKey == "" {
		return Result{NotConfigured: true}, nil
	}

	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": elevenLabsModelID,
		"voice_settings": map[string]float64{
			"stability":        0.5,
			"similarity_boost": 0.5,
		},
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, elevenLabsEndpoint+e.voiceID, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("elevenlabs: unexpected status %s", resp.Status)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderedAudioLen))
	if err != nil {
		return Result{}, err
	}
	return Result{Audio: audio, ContentType: "audio/mpeg"}, nil
}
