package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"gorm.io/datatypes"

	"github.com/prepdeck/prepdeck/internal/cache"
	"github.com/prepdeck/prepdeck/internal/models"
	mongorepo "github.com/prepdeck/prepdeck/internal/repositories/mongo"
	pgrepo "github.com/prepdeck/prepdeck/internal/repositories/postgres"
	"github.com/prepdeck/prepdeck/internal/scoring"
	"github.com/prepdeck/prepdeck/internal/utils"
)

type Stage string

const (
	StageSetup     Stage = "setup"
	StageQuestions Stage = "questions"
	StageFeedback  Stage = "feedback"
)

// QuestionGenerator is the generation gateway as the orchestrator sees it.
// Neither operation can fail; upstream outages are absorbed by the gateway's
// deterministic fallback.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, cfg models.SessionConfig) []models.InterviewQuestion
	GenerateFeedback(ctx context.Context, question models.InterviewQuestion, transcript string, durationSeconds int, jobCtx models.SessionConfig) models.ResponseFeedback
}

// AnswerInput is the finalized recording tuple for the current question.
type AnswerInput struct {
	Transcript      string `json:"transcript"`
	DurationSeconds int    `json:"duration_seconds"`
	AudioURL        string `json:"audio_url,omitempty"`
	VideoURL        string `json:"video_url,omitempty"`
}

type InterviewService interface {
	BeginSetup(ctx context.Context, userID string, cfg models.SessionConfig) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	RecordAnswer(ctx context.Context, sessionID string, in AnswerInput) (*models.InterviewResponse, error)
	Advance(ctx context.Context, sessionID string, delta int) (int, error)
	CurrentIndex(sessionID string) int
	Complete(ctx context.Context, sessionID string) (*models.Session, error)
	Reset(sessionID string)
	Report(ctx context.Context, sessionID string) (scoring.Report, error)
	History(ctx context.Context, userID string, limit int) ([]models.ResponseArchive, error)
	ArchivedResponses(ctx context.Context, sessionID string) ([]models.ResponseArchive, error)
}

const reportCacheTTL = 24 * time.Hour

type interviewService struct {
	sessions mongorepo.SessionRepository
	archive  pgrepo.ArchiveRepo // optional
	gen      QuestionGenerator
	cache    cache.Cache // optional
	log      *logrus.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// run is the in-memory state of one session being driven by this orchestrator
// instance: the linear stage, the current-question index, and the session
// document (single source of truth, mutated only here).
type run struct {
	mu      sync.Mutex
	stage   Stage
	index   int
	session *models.Session
}

func NewInterviewService(sessions mongorepo.SessionRepository, archive pgrepo.ArchiveRepo, gen QuestionGenerator, c cache.Cache, log *logrus.Logger) InterviewService {
	if log == nil {
		log = logrus.New()
	}
	return &interviewService{
		sessions: sessions,
		archive:  archive,
		gen:      gen,
		cache:    c,
		log:      log,
		runs:     make(map[string]*run),
	}
}

// BeginSetup validates the config, generates the question set, and creates
// the session. Configuration errors are rejected before any generation call;
// a store failure surfaces as a setup failure and nothing is retained.
func (s *interviewService) BeginSetup(ctx context.Context, userID string, cfg models.SessionConfig) (*models.Session, error) {
	const op = "InterviewService.BeginSetup"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "user id is required", nil)
	}
	if field, ok := blankConfigField(cfg); ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, field+" is required", nil)
	}

	questions := s.gen.GenerateQuestions(ctx, cfg)

	now := time.Now().UTC()
	session := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Config:    cfg,
		Questions: questions,
		Responses: []models.InterviewResponse{},
		Status:    models.StatusInProgress,
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	s.mu.Lock()
	s.runs[session.SessionID] = &run{stage: StageQuestions, index: 0, session: session}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session_id": session.SessionID,
		"user_id":    userID,
		"questions":  len(questions),
	}).Info("interview session created")
	return session, nil
}

func (s *interviewService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "InterviewService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if r := s.getRun(sessionID); r != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.session, nil
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return out, nil
}

func (s *interviewService) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	const op = "InterviewService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	out, err := s.sessions.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sessions", err)
	}
	return out, nil
}

// RecordAnswer scores the current question's answer and commits the response.
// Idempotent per question id: re-answering replaces the committed response in
// its original order slot. The index does not auto-advance.
func (s *interviewService) RecordAnswer(ctx context.Context, sessionID string, in AnswerInput) (*models.InterviewResponse, error) {
	const op = "InterviewService.RecordAnswer"

	r, err := s.activeRun(ctx, sessionID, op)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage != StageQuestions {
		return nil, utils.E(utils.CodeConflict, op, "session is not in the question stage", nil)
	}
	if strings.TrimSpace(in.Transcript) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "transcript is empty", nil)
	}
	if in.DurationSeconds < 0 {
		in.DurationSeconds = 0
	}

	question := r.session.Questions[r.index]
	feedback := s.gen.GenerateFeedback(ctx, question, in.Transcript, in.DurationSeconds, r.session.Config)

	response := models.InterviewResponse{
		QuestionID:          question.ID,
		Transcript:          in.Transcript,
		ResponseTimeSeconds: in.DurationSeconds,
		AudioURL:            in.AudioURL,
		VideoURL:            in.VideoURL,
		Feedback:            feedback,
		CreatedAt:           time.Now().UTC(),
	}

	// build the replacement list first; in-memory state is committed only
	// after the store accepts it, so a failed update can be retried intact
	responses := make([]models.InterviewResponse, len(r.session.Responses))
	copy(responses, r.session.Responses)
	replaced := false
	for i := range responses {
		if responses[i].QuestionID == question.ID {
			responses[i] = response
			replaced = true
			break
		}
	}
	if !replaced {
		responses = append(responses, response)
	}
	completionRate := float64(len(responses)) / float64(len(r.session.Questions)) * 100

	err = s.sessions.Update(ctx, sessionID, bson.M{
		"responses":       responses,
		"completion_rate": completionRate,
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save response", err)
	}

	r.session.Responses = responses
	r.session.CompletionRate = completionRate

	s.archiveResponse(ctx, r.session, question, &response)
	return &response, nil
}

// Advance moves the current-question index by delta, clamped to the question
// range, and returns the new index. Navigation is free in either direction.
func (s *interviewService) Advance(ctx context.Context, sessionID string, delta int) (int, error) {
	const op = "InterviewService.Advance"

	r, err := s.activeRun(ctx, sessionID, op)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage != StageQuestions {
		return r.index, utils.E(utils.CodeConflict, op, "session is not in the question stage", nil)
	}
	r.index += delta
	if r.index < 0 {
		r.index = 0
	}
	if max := len(r.session.Questions) - 1; r.index > max {
		r.index = max
	}
	return r.index, nil
}

func (s *interviewService) CurrentIndex(sessionID string) int {
	if r := s.getRun(sessionID); r != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.index
	}
	return 0
}

// Complete finalizes the session: requires a response for the last question,
// derives the aggregate metrics, persists, and transitions to the feedback
// stage. A store failure leaves the run untouched for retry.
func (s *interviewService) Complete(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "InterviewService.Complete"

	r, err := s.activeRun(ctx, sessionID, op)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage == StageFeedback {
		return r.session, nil
	}
	if r.stage != StageQuestions {
		return nil, utils.E(utils.CodeConflict, op, "session is not in the question stage", nil)
	}

	last := r.session.Questions[len(r.session.Questions)-1]
	if !r.session.HasResponseFor(last.ID) {
		return nil, utils.E(utils.CodeConflict, op, "the final question has no response yet", nil)
	}

	summary := scoring.Summarize(r.session.Responses, len(r.session.Questions))
	overall := scoring.OverallFeedback(summary)
	now := time.Now().UTC()

	err = s.sessions.Update(ctx, sessionID, bson.M{
		"status":           models.StatusCompleted,
		"responses":        r.session.Responses,
		"overall_feedback": overall,
		"completion_rate":  summary.CompletionRate,
		"completed_at":     now,
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to complete session", err)
	}

	r.session.Status = models.StatusCompleted
	r.session.OverallFeedback = overall
	r.session.CompletionRate = summary.CompletionRate
	r.session.CompletedAt = &now
	r.stage = StageFeedback

	s.cacheReport(ctx, r.session, now)

	s.log.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"completion_rate": summary.CompletionRate,
		"overall_score":   summary.OverallScore,
	}).Info("interview session completed")
	return r.session, nil
}

// Reset discards the in-memory run and any cached report; the next
// interaction starts from setup.
func (s *interviewService) Reset(sessionID string) {
	s.mu.Lock()
	delete(s.runs, sessionID)
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Del(context.Background(), reportCacheKey(sessionID)); err != nil {
			s.log.WithError(err).Warn("report cache invalidation failed")
		}
	}
}

// History lists the caller's archived responses across sessions, newest
// first.
func (s *interviewService) History(ctx context.Context, userID string, limit int) ([]models.ResponseArchive, error) {
	const op = "InterviewService.History"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if s.archive == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "response archive is not configured", nil)
	}
	rows, err := s.archive.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list archived responses", err)
	}
	return rows, nil
}

// ArchivedResponses lists one session's archived responses in answer order.
func (s *interviewService) ArchivedResponses(ctx context.Context, sessionID string) ([]models.ResponseArchive, error) {
	const op = "InterviewService.ArchivedResponses"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if s.archive == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "response archive is not configured", nil)
	}
	rows, err := s.archive.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list archived responses", err)
	}
	return rows, nil
}

// Report derives the serializable session report, preferring the cached copy
// for completed sessions.
func (s *interviewService) Report(ctx context.Context, sessionID string) (scoring.Report, error) {
	if s.cache != nil {
		var cached scoring.Report
		if hit, err := s.cache.GetJSON(ctx, reportCacheKey(sessionID), &cached); err == nil && hit {
			return cached, nil
		}
	}

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return scoring.Report{}, err
	}
	return scoring.BuildReport(session, time.Now()), nil
}

func (s *interviewService) getRun(sessionID string) *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[sessionID]
}

// activeRun returns the in-memory run, rebuilding one from the store when
// this orchestrator instance has restarted mid-session.
func (s *interviewService) activeRun(ctx context.Context, sessionID, op string) (*run, error) {
	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if r := s.getRun(sessionID); r != nil {
		return r, nil
	}

	session, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if session.Status != models.StatusInProgress {
		return nil, utils.E(utils.CodeConflict, op, "session is not in progress", nil)
	}

	r := &run{stage: StageQuestions, index: 0, session: session}
	s.mu.Lock()
	if existing, ok := s.runs[sessionID]; ok {
		r = existing
	} else {
		s.runs[sessionID] = r
	}
	s.mu.Unlock()
	return r, nil
}

// archiveResponse writes the best-effort Postgres row. The Mongo document is
// the source of truth; archive failures are logged, never surfaced.
func (s *interviewService) archiveResponse(ctx context.Context, session *models.Session, question models.InterviewQuestion, response *models.InterviewResponse) {
	if s.archive == nil {
		return
	}
	feedbackJSON, err := json.Marshal(response.Feedback)
	if err != nil {
		feedbackJSON = []byte("{}")
	}
	row := &models.ResponseArchive{
		ID:                  uuid.NewString(),
		UserID:              session.UserID,
		SessionID:           session.SessionID,
		QuestionID:          question.ID,
		QuestionText:        question.Question,
		Transcript:          response.Transcript,
		ResponseTimeSeconds: response.ResponseTimeSeconds,
		ContentScore:        response.Feedback.ContentScore,
		CommunicationScore:  response.Feedback.CommunicationScore,
		ConfidenceScore:     response.Feedback.ConfidenceScore,
		Strengths:           response.Feedback.Strengths,
		Improvements:        response.Feedback.Improvements,
		Feedback:            datatypes.JSON(feedbackJSON),
		CreatedAt:           response.CreatedAt,
	}
	if err := s.archive.Insert(ctx, row); err != nil {
		s.log.WithError(err).WithField("session_id", session.SessionID).Warn("response archive insert failed")
	}
}

func (s *interviewService) cacheReport(ctx context.Context, session *models.Session, now time.Time) {
	if s.cache == nil {
		return
	}
	report := scoring.BuildReport(session, now)
	if err := s.cache.SetJSON(ctx, reportCacheKey(session.SessionID), report, reportCacheTTL); err != nil {
		s.log.WithError(err).Warn("report cache write failed")
	}
}

func reportCacheKey(sessionID string) string { return "report:" + sessionID }

func blankConfigField(cfg models.SessionConfig) (string, bool) {
	switch {
	case strings.TrimSpace(cfg.JobTitle) == "":
		return "job_title", true
	case strings.TrimSpace(cfg.Company) == "":
		return "company", true
	case strings.TrimSpace(cfg.JobDescription) == "":
		return "job_description", true
	case strings.TrimSpace(cfg.ResumeText) == "":
		return "resume_text", true
	default:
		return "", false
	}
}
