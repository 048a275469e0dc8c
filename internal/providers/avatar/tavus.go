package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result carries the rendered interviewer video, or NotConfigured when no API
// key is set. VideoURL may be empty while the render is still processing.
type Result struct {
	VideoID       string
	VideoURL      string
	Status        string
	NotConfigured bool
}

// Renderer produces an avatar video speaking the question text.
type Renderer interface {
	Render(ctx context.Context, text string) (Result, error)
}

const tavusEndpoint = "https://tavusapi.com/v2/videos"

type Tavus struct {
	apiKey    string
	replicaID string
	http      *http.Client
}

func NewTavus(apiKey, replicaID string) *Tavus {
	if replicaID == "" {
		replicaID = "default-replica"
	}
	return &Tavus{
		apiKey:    apiKey,
		replicaID: replicaID,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Tavus) Render(ctx context.Context, text string) (Result, error) {
	if t.apiKey == "" {
		return Result{NotConfigured: true}, nil
	}

	body, err := json.Marshal(map[string]any{
		"script":     text,
		"replica_id": t.replicaID,
		"video_name": fmt.Sprintf("Interview Question - %d", time.Now().UTC().UnixMilli()),
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavusEndpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)

	resp, err := t.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("tavus: unexpected status %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, err
	}

	var out struct {
		VideoID     string `json:"video_id"`
		DownloadURL string `json:"download_url"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, err
	}
	return Result{VideoID: out.VideoID, VideoURL: out.DownloadURL, Status: out.Status}, nil
}
