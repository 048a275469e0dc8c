package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/prepdeck/prepdeck/internal/models"
	"github.com/prepdeck/prepdeck/internal/utils"
)

type fakeSessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*models.Session
	createErr error
	updateErr error
	updates   int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*models.Session{}}
}

func (f *fakeSessionStore) Create(ctx context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	clone := *s
	f.sessions[s.SessionID] = &clone
	return nil
}

func (f *fakeSessionStore) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (f *fakeSessionStore) ListByUser(ctx context.Context, userID string, limit int64) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) Update(ctx context.Context, sessionID string, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return utils.ErrNotFound
	}
	f.updates++
	for k, v := range set {
		switch k {
		case "responses":
			s.Responses = append([]models.InterviewResponse(nil), v.([]models.InterviewResponse)...)
		case "completion_rate":
			s.CompletionRate = v.(float64)
		case "status":
			s.Status = v.(models.SessionStatus)
		case "overall_feedback":
			s.OverallFeedback = v.(string)
		case "completed_at":
			at := v.(time.Time)
			s.CompletedAt = &at
		}
	}
	return nil
}

// fakeGenerator hands out a fixed five-question set and constant scores so
// aggregates are exact.
type fakeGenerator struct {
	mu            sync.Mutex
	questionCalls int
	feedbackCalls int
}

func (f *fakeGenerator) GenerateQuestions(ctx context.Context, cfg models.SessionConfig) []models.InterviewQuestion {
	f.mu.Lock()
	f.questionCalls++
	f.mu.Unlock()

	qs := make([]models.InterviewQuestion, 5)
	for i := range qs {
		qs[i] = models.InterviewQuestion{
			ID:                     fmt.Sprintf("q%d", i+1),
			Question:               fmt.Sprintf("Question %d?", i+1),
			Category:               models.CategoryBehavioral,
			Difficulty:             models.DifficultyMedium,
			SuggestedAnswerSeconds: 120,
		}
	}
	return qs
}

func (f *fakeGenerator) GenerateFeedback(ctx context.Context, q models.InterviewQuestion, transcript string, durationSeconds int, jobCtx models.SessionConfig) models.ResponseFeedback {
	f.mu.Lock()
	f.feedbackCalls++
	f.mu.Unlock()

	return models.ResponseFeedback{
		ContentScore:       8,
		CommunicationScore: 6,
		ConfidenceScore:    7,
		DetailedFeedback:   "Scored " + transcript,
		Strengths:          []string{"a", "b", "c"},
		Improvements:       []string{"x", "y", "z"},
	}
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string][]byte{}} }

func (f *fakeCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (f *fakeCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = b
	return nil
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.entries, k)
	}
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(nilWriter{})
	return l
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

var testConfig = models.SessionConfig{
	JobTitle:       "Backend Engineer",
	Company:        "Acme",
	JobDescription: "Build and operate Go services.",
	ResumeText:     "Five years of backend work.",
}

func TestBeginSetupValidation(t *testing.T) {
	t.Parallel()

	svc := NewInterviewService(newFakeSessionStore(), nil, &fakeGenerator{}, nil, quietLogger())

	if _, err := svc.BeginSetup(context.Background(), "", testConfig); err == nil {
		t.Error("missing user should be rejected")
	}

	cfg := testConfig
	cfg.JobTitle = "  "
	_, err := svc.BeginSetup(context.Background(), "user-1", cfg)
	var ae *utils.AppError
	if !errors.As(err, &ae) || ae.Code != utils.CodeInvalidArgument {
		t.Errorf("blank job title: got %v, want invalid-argument", err)
	}
}

func TestBeginSetupCreatesSession(t *testing.T) {
	t.Parallel()

	store := newFakeSessionStore()
	svc := NewInterviewService(store, nil, &fakeGenerator{}, nil, quietLogger())

	sess, err := svc.BeginSetup(context.Background(), "user-1", testConfig)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if sess.SessionID == "" {
		t.Error("session id missing")
	}
	if sess.Status != models.StatusInProgress {
		t.Errorf("status = %q, want in_progress", sess.Status)
	}
	if len(sess.Questions) != 5 {
		t.Errorf("questions = %d, want 5", len(sess.Questions))
	}
	if _, err := store.GetBySessionID(context.Background(), sess.SessionID); err != nil {
		t.Errorf("session not persisted: %v", err)
	}
	if got := svc.CurrentIndex(sess.SessionID); got != 0 {
		t.Errorf("initial index = %d, want 0", got)
	}
}

func TestBeginSetupStoreFailure(t *testing.T) {
	t.Parallel()

	store := newFakeSessionStore()
	store.createErr = errors.New("mongo down")
	svc := NewInterviewService(store, nil, &fakeGenerator{}, nil, quietLogger())

	_, err := svc.BeginSetup(context.Background(), "user-1", testConfig)
	var ae *utils.AppError
	if !errors.As(err, &ae) || ae.Code != utils.CodeInternal {
		t.Fatalf("got %v, want internal", err)
	}
}

func TestRecordAnswerAndResubmit(t *testing.T) {
	t.Parallel()

	store := newFakeSessionStore()
	svc := NewInterviewService(store, nil, &fakeGenerator{}, nil, quietLogger())
	sess, err := svc.BeginSetup(context.Background(), "user-1", testConfig)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	resp, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "first take", DurationSeconds: 40})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if resp.QuestionID != "q1" {
		t.Errorf("attributed to %q, want q1", resp.QuestionID)
	}
	if resp.Feedback.ContentScore != 8 {
		t.Errorf("feedback not attached: %+v", resp.Feedback)
	}

	got, _ := svc.Get(context.Background(), sess.SessionID)
	if got.CompletionRate != 20 {
		t.Errorf("completion = %v, want 20", got.CompletionRate)
	}

	// re-answering the same question replaces in place
	resp2, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "second take", DurationSeconds: 55})
	if err != nil {
		t.Fatalf("re-answer: %v", err)
	}
	got, _ = svc.Get(context.Background(), sess.SessionID)
	if len(got.Responses) != 1 {
		t.Fatalf("responses = %d, want 1 after replacement", len(got.Responses))
	}
	if got.Responses[0].Transcript != "second take" || resp2.ResponseTimeSeconds != 55 {
		t.Errorf("replacement not committed: %+v", got.Responses[0])
	}
	if got.CompletionRate != 20 {
		t.Errorf("completion after replacement = %v, want 20", got.CompletionRate)
	}
}

func TestRecordAnswerEmptyTranscript(t *testing.T) {
	t.Parallel()

	svc := NewInterviewService(newFakeSessionStore(), nil, &fakeGenerator{}, nil, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	_, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "   "})
	var ae *utils.AppError
	if !errors.As(err, &ae) || ae.Code != utils.CodeInvalidArgument {
		t.Fatalf("got %v, want invalid-argument", err)
	}
}

func TestOutOfOrderAttribution(t *testing.T) {
	t.Parallel()

	svc := NewInterviewService(newFakeSessionStore(), nil, &fakeGenerator{}, nil, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	if idx, err := svc.Advance(context.Background(), sess.SessionID, 2); err != nil || idx != 2 {
		t.Fatalf("advance = %d, %v", idx, err)
	}
	resp, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "third answered first", DurationSeconds: 30})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if resp.QuestionID != "q3" {
		t.Errorf("attributed to %q, want q3", resp.QuestionID)
	}

	if idx, err := svc.Advance(context.Background(), sess.SessionID, -2); err != nil || idx != 0 {
		t.Fatalf("advance back = %d, %v", idx, err)
	}
	resp, err = svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "first answered second", DurationSeconds: 30})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if resp.QuestionID != "q1" {
		t.Errorf("attributed to %q, want q1", resp.QuestionID)
	}

	// committed in answer order, not question order
	got, _ := svc.Get(context.Background(), sess.SessionID)
	if got.Responses[0].QuestionID != "q3" || got.Responses[1].QuestionID != "q1" {
		t.Errorf("response order = %q,%q", got.Responses[0].QuestionID, got.Responses[1].QuestionID)
	}
}

func TestAdvanceClamps(t *testing.T) {
	t.Parallel()

	svc := NewInterviewService(newFakeSessionStore(), nil, &fakeGenerator{}, nil, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	if idx, _ := svc.Advance(context.Background(), sess.SessionID, -10); idx != 0 {
		t.Errorf("below range = %d, want 0", idx)
	}
	if idx, _ := svc.Advance(context.Background(), sess.SessionID, 99); idx != 4 {
		t.Errorf("above range = %d, want 4", idx)
	}
}

func TestCompleteFlow(t *testing.T) {
	t.Parallel()

	store := newFakeSessionStore()
	svc := NewInterviewService(store, nil, &fakeGenerator{}, nil, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	// answer only the first question: completion must be refused
	if _, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "one", DurationSeconds: 30}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	_, err := svc.Complete(context.Background(), sess.SessionID)
	var ae *utils.AppError
	if !errors.As(err, &ae) || ae.Code != utils.CodeConflict {
		t.Fatalf("premature complete: got %v, want conflict", err)
	}

	if _, err := svc.Advance(context.Background(), sess.SessionID, 4); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "last", DurationSeconds: 45}); err != nil {
		t.Fatalf("answer last: %v", err)
	}

	done, err := svc.Complete(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}
	if done.CompletedAt == nil {
		t.Error("completed-at not set")
	}
	if done.CompletionRate != 40 {
		t.Errorf("completion = %v, want 40", done.CompletionRate)
	}
	if done.OverallFeedback == "" {
		t.Error("overall feedback missing")
	}

	// completing again is idempotent
	again, err := svc.Complete(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("repeat complete: %v", err)
	}
	if again.Status != models.StatusCompleted {
		t.Errorf("repeat status = %q", again.Status)
	}

	// the question stage is closed
	_, err = svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "too late"})
	if !errors.As(err, &ae) || ae.Code != utils.CodeConflict {
		t.Errorf("answer after complete: got %v, want conflict", err)
	}
}

func TestCompletePersistFailureKeepsRun(t *testing.T) {
	t.Parallel()

	store := newFakeSessionStore()
	svc := NewInterviewService(store, nil, &fakeGenerator{}, nil, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	svc.Advance(context.Background(), sess.SessionID, 4)
	if _, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "last", DurationSeconds: 45}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	store.mu.Lock()
	store.updateErr = errors.New("mongo down")
	store.mu.Unlock()

	if _, err := svc.Complete(context.Background(), sess.SessionID); err == nil {
		t.Fatal("complete should surface the store failure")
	}

	store.mu.Lock()
	store.updateErr = nil
	store.mu.Unlock()

	// the run survived the failure; the retry succeeds
	done, err := svc.Complete(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("retry complete: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}
}

func TestReportUsesCache(t *testing.T) {
	t.Parallel()

	store := newFakeSessionStore()
	c := newFakeCache()
	svc := NewInterviewService(store, nil, &fakeGenerator{}, c, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	svc.Advance(context.Background(), sess.SessionID, 4)
	if _, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "last", DurationSeconds: 45}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := svc.Complete(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	c.mu.Lock()
	if _, ok := c.entries["report:"+sess.SessionID]; !ok {
		t.Error("completion should populate the report cache")
	}
	c.mu.Unlock()

	report, err := svc.Report(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.SessionID != sess.SessionID {
		t.Errorf("report session = %q", report.SessionID)
	}
	if report.Summary.AnsweredQuestions != 1 || report.Summary.TotalQuestions != 5 {
		t.Errorf("summary = %+v", report.Summary)
	}
}

func TestReportWithoutCache(t *testing.T) {
	t.Parallel()

	svc := NewInterviewService(newFakeSessionStore(), nil, &fakeGenerator{}, nil, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	report, err := svc.Report(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Summary.Defined {
		t.Error("summary should be undefined with no responses")
	}
	if len(report.Questions) != 5 {
		t.Errorf("questions = %d, want 5", len(report.Questions))
	}
}

func TestResetThenRebuildFromStore(t *testing.T) {
	t.Parallel()

	store := newFakeSessionStore()
	svc := NewInterviewService(store, nil, &fakeGenerator{}, nil, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	svc.Advance(context.Background(), sess.SessionID, 3)
	svc.Reset(sess.SessionID)

	// the in-memory run is gone: position restarts at the first question,
	// but the stored session still drives the flow
	if got := svc.CurrentIndex(sess.SessionID); got != 0 {
		t.Errorf("index after reset = %d, want 0", got)
	}
	resp, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "fresh start", DurationSeconds: 20})
	if err != nil {
		t.Fatalf("answer after reset: %v", err)
	}
	if resp.QuestionID != "q1" {
		t.Errorf("attributed to %q, want q1", resp.QuestionID)
	}
}

type fakeArchive struct {
	mu      sync.Mutex
	rows    []models.ResponseArchive
	listErr error
}

func (f *fakeArchive) Insert(ctx context.Context, row *models.ResponseArchive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *row)
	return nil
}

func (f *fakeArchive) ListByUser(ctx context.Context, userID string, limit int) ([]models.ResponseArchive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.ResponseArchive
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeArchive) ListBySession(ctx context.Context, sessionID string) ([]models.ResponseArchive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.ResponseArchive
	for _, r := range f.rows {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestHistoryAndSessionListing(t *testing.T) {
	t.Parallel()

	archive := &fakeArchive{}
	svc := NewInterviewService(newFakeSessionStore(), archive, &fakeGenerator{}, nil, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	if _, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "first", DurationSeconds: 30}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	rows, err := svc.History(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 1 || rows[0].QuestionID != "q1" || rows[0].Transcript != "first" {
		t.Errorf("history rows = %+v", rows)
	}

	rows, err = svc.ArchivedResponses(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("session responses: %v", err)
	}
	if len(rows) != 1 || rows[0].SessionID != sess.SessionID {
		t.Errorf("session rows = %+v", rows)
	}

	if _, err := svc.History(context.Background(), "stranger", 0); err != nil {
		t.Fatalf("history for other user: %v", err)
	}
}

func TestHistoryWithoutArchive(t *testing.T) {
	t.Parallel()

	svc := NewInterviewService(newFakeSessionStore(), nil, &fakeGenerator{}, nil, quietLogger())

	_, err := svc.History(context.Background(), "user-1", 0)
	var ae *utils.AppError
	if !errors.As(err, &ae) || ae.Code != utils.CodeUnavailable {
		t.Errorf("got %v, want unavailable", err)
	}

	_, err = svc.ArchivedResponses(context.Background(), "sess")
	if !errors.As(err, &ae) || ae.Code != utils.CodeUnavailable {
		t.Errorf("got %v, want unavailable", err)
	}
}

func TestResetInvalidatesReportCache(t *testing.T) {
	t.Parallel()

	store := newFakeSessionStore()
	c := newFakeCache()
	svc := NewInterviewService(store, nil, &fakeGenerator{}, c, quietLogger())
	sess, _ := svc.BeginSetup(context.Background(), "user-1", testConfig)

	svc.Advance(context.Background(), sess.SessionID, 4)
	if _, err := svc.RecordAnswer(context.Background(), sess.SessionID, AnswerInput{Transcript: "last", DurationSeconds: 45}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := svc.Complete(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	key := "report:" + sess.SessionID
	c.mu.Lock()
	_, cached := c.entries[key]
	c.mu.Unlock()
	if !cached {
		t.Fatal("completion should populate the report cache")
	}

	svc.Reset(sess.SessionID)

	c.mu.Lock()
	_, cached = c.entries[key]
	c.mu.Unlock()
	if cached {
		t.Error("reset should drop the cached report")
	}
}

func TestUnknownSession(t *testing.T) {
	t.Parallel()

	svc := NewInterviewService(newFakeSessionStore(), nil, &fakeGenerator{}, nil, quietLogger())

	_, err := svc.RecordAnswer(context.Background(), "nope", AnswerInput{Transcript: "hello"})
	var ae *utils.AppError
	if !errors.As(err, &ae) || ae.Code != utils.CodeNotFound {
		t.Fatalf("got %v, want not-found", err)
	}
}
