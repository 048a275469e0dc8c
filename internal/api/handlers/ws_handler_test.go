package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/prepdeck/prepdeck/internal/models"
	"github.com/prepdeck/prepdeck/internal/providers/capture"
	"github.com/prepdeck/prepdeck/internal/providers/transcribe"
	"github.com/prepdeck/prepdeck/internal/scoring"
	"github.com/prepdeck/prepdeck/internal/services"
	"github.com/prepdeck/prepdeck/internal/utils"
)

type fakeInterviewSvc struct {
	mu        sync.Mutex
	recordErr error
	answers   []services.AnswerInput
}

func (f *fakeInterviewSvc) setRecordErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordErr = err
}

func (f *fakeInterviewSvc) recorded() []services.AnswerInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.AnswerInput(nil), f.answers...)
}

func (f *fakeInterviewSvc) BeginSetup(ctx context.Context, userID string, cfg models.SessionConfig) (*models.Session, error) {
	return nil, utils.E(utils.CodeInternal, "fake", "not implemented", nil)
}

func (f *fakeInterviewSvc) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return &models.Session{SessionID: sessionID, UserID: "user-1", Status: models.StatusInProgress}, nil
}

func (f *fakeInterviewSvc) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	return nil, nil
}

func (f *fakeInterviewSvc) RecordAnswer(ctx context.Context, sessionID string, in services.AnswerInput) (*models.InterviewResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.answers = append(f.answers, in)
	return &models.InterviewResponse{
		QuestionID:          "q1",
		Transcript:          in.Transcript,
		ResponseTimeSeconds: in.DurationSeconds,
		Feedback:            models.ResponseFeedback{ContentScore: 7, CommunicationScore: 7, ConfidenceScore: 7},
	}, nil
}

func (f *fakeInterviewSvc) Advance(ctx context.Context, sessionID string, delta int) (int, error) {
	return 0, nil
}

func (f *fakeInterviewSvc) CurrentIndex(sessionID string) int { return 0 }

func (f *fakeInterviewSvc) Complete(ctx context.Context, sessionID string) (*models.Session, error) {
	return nil, utils.E(utils.CodeInternal, "fake", "not implemented", nil)
}

func (f *fakeInterviewSvc) Reset(sessionID string) {}

func (f *fakeInterviewSvc) Report(ctx context.Context, sessionID string) (scoring.Report, error) {
	return scoring.Report{}, nil
}

func (f *fakeInterviewSvc) History(ctx context.Context, userID string, limit int) ([]models.ResponseArchive, error) {
	return nil, nil
}

func (f *fakeInterviewSvc) ArchivedResponses(ctx context.Context, sessionID string) ([]models.ResponseArchive, error) {
	return nil, nil
}

type wsFakeStream struct {
	mu     sync.Mutex
	ch     chan transcribe.Fragment
	closed bool
}

func newWSFakeStream() *wsFakeStream {
	return &wsFakeStream{ch: make(chan transcribe.Fragment, 16)}
}

func (s *wsFakeStream) Send(b []byte) error { return nil }

func (s *wsFakeStream) Results() <-chan transcribe.Fragment { return s.ch }

func (s *wsFakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

func (s *wsFakeStream) emit(text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- transcribe.Fragment{Text: text, IsFinal: final}
}

type wsFakeSTT struct {
	mu      sync.Mutex
	streams []*wsFakeStream
}

func (f *wsFakeSTT) Start(ctx context.Context, cfg transcribe.Config) (transcribe.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := newWSFakeStream()
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *wsFakeSTT) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *wsFakeSTT) stream(i int) *wsFakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

type wsFakeDevice struct{}

func (wsFakeDevice) StartRecording() error { return nil }
func (wsFakeDevice) Pause() error          { return nil }
func (wsFakeDevice) Resume() error         { return nil }
func (wsFakeDevice) Append(b []byte) error { return nil }
func (wsFakeDevice) Finalize(ctx context.Context) (capture.Artifact, error) {
	return capture.Artifact{}, nil
}
func (wsFakeDevice) Release() {}

type wsFakeCapture struct{}

func (wsFakeCapture) Acquire(ctx context.Context) (capture.Device, error) {
	return wsFakeDevice{}, nil
}

func wsQuietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(nilWriter{})
	return l
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

func dialRecordingWS(t *testing.T, svc services.InterviewService, stt transcribe.Provider) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewWSHandler(svc, wsFakeCapture{}, stt, wsQuietLogger())
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("user_id", "user-1") })
	r.GET("/ws/interview/:session_id", h.RecordingWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/interview/sess-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil discards messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	for i := 0; i < 50; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		if m["type"] == msgType {
			return m
		}
	}
	t.Fatalf("no %q message arrived", msgType)
	return nil
}

func waitForStream(t *testing.T, stt *wsFakeSTT) *wsFakeStream {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if stt.count() > 0 {
			return stt.stream(0)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("transcription stream never opened")
	return nil
}

func TestRecordingWSSubmitRetriesAfterStoreFailure(t *testing.T) {
	t.Parallel()

	svc := &fakeInterviewSvc{}
	svc.setRecordErr(utils.E(utils.CodeInternal, "InterviewService.RecordAnswer", "failed to save response", nil))
	stt := &wsFakeSTT{}
	conn := dialRecordingWS(t, svc, stt)

	sendWS(t, conn, gin.H{"type": "start"})
	if m := readUntil(t, conn, "state"); m["state"] != "recording" {
		t.Fatalf("state = %v, want recording", m["state"])
	}

	waitForStream(t, stt).emit("my answer", true)
	if m := readUntil(t, conn, "transcript"); m["text"] != "my answer" || m["is_final"] != true {
		t.Fatalf("transcript = %v", m)
	}

	sendWS(t, conn, gin.H{"type": "stop"})
	if m := readUntil(t, conn, "state"); m["state"] != "completed" {
		t.Fatalf("state = %v, want completed", m["state"])
	}

	// the store rejects the first submit; the finalized tuple must survive
	sendWS(t, conn, gin.H{"type": "submit"})
	if m := readUntil(t, conn, "error"); m["code"] != string(utils.CodeInternal) {
		t.Fatalf("error = %v, want internal", m)
	}

	svc.setRecordErr(nil)
	sendWS(t, conn, gin.H{"type": "submit"})
	m := readUntil(t, conn, "feedback")
	resp, ok := m["response"].(map[string]any)
	if !ok {
		t.Fatalf("feedback payload = %v", m)
	}
	if resp["transcript"] != "my answer" {
		t.Errorf("retried transcript = %v, want the original answer", resp["transcript"])
	}

	answers := svc.recorded()
	if len(answers) != 1 || answers[0].Transcript != "my answer" {
		t.Fatalf("recorded answers = %+v, want the single retried tuple", answers)
	}

	// the tuple is cleared once persisted; a third submit has nothing to send
	sendWS(t, conn, gin.H{"type": "submit"})
	if m := readUntil(t, conn, "error"); m["code"] != string(utils.CodeInvalidArgument) {
		t.Fatalf("error = %v, want invalid-argument", m)
	}
}

func TestRecordingWSResetDropsRetainedResult(t *testing.T) {
	t.Parallel()

	svc := &fakeInterviewSvc{}
	svc.setRecordErr(utils.E(utils.CodeInternal, "InterviewService.RecordAnswer", "failed to save response", nil))
	stt := &wsFakeSTT{}
	conn := dialRecordingWS(t, svc, stt)

	sendWS(t, conn, gin.H{"type": "start"})
	readUntil(t, conn, "state")
	waitForStream(t, stt).emit("discarded answer", true)
	readUntil(t, conn, "transcript")
	sendWS(t, conn, gin.H{"type": "stop"})
	readUntil(t, conn, "state")

	sendWS(t, conn, gin.H{"type": "submit"})
	readUntil(t, conn, "error")

	// an explicit reset abandons the unsaved recording
	sendWS(t, conn, gin.H{"type": "reset"})
	readUntil(t, conn, "state")

	svc.setRecordErr(nil)
	sendWS(t, conn, gin.H{"type": "submit"})
	if m := readUntil(t, conn, "error"); m["code"] != string(utils.CodeInvalidArgument) {
		t.Fatalf("error = %v, want invalid-argument after reset", m)
	}
	if got := svc.recorded(); len(got) != 0 {
		t.Fatalf("recorded answers = %+v, want none", got)
	}
}
