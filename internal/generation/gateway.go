package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepdeck/prepdeck/internal/models"
	"github.com/prepdeck/prepdeck/internal/providers/reasoning"
)

// QuestionCount is the fixed length of every generated question set.
const QuestionCount = 5

const defaultRequestTimeout = 25 * time.Second

// Gateway is the single entry point for question and feedback generation. It
// tries the reasoning service once and silently falls back to the
// deterministic generator on any failure; both operations always resolve with
// validated output and never return an error.
type Gateway struct {
	reasoner reasoning.Provider // nil when the reasoning service is not configured
	timeout  time.Duration
	log      *logrus.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewGateway builds a gateway. rng drives the fallback feedback jitter; pass
// a seeded source in tests to make scores reproducible.
func NewGateway(reasoner reasoning.Provider, timeout time.Duration, rng *rand.Rand, log *logrus.Logger) *Gateway {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = logrus.New()
	}
	return &Gateway{reasoner: reasoner, timeout: timeout, rng: rng, log: log}
}

const questionSystemPrompt = `You are an expert interview coach. Generate 5 relevant interview questions based on the job description and candidate's resume.

Return ONLY a JSON array of questions in this exact format:
[
  {
    "id": "unique_id",
    "question": "question text",
    "category": "category name",
    "difficulty": "easy|medium|hard",
    "suggested_answer_length": number_in_seconds
  }
]

Categories should be one of: Technical, Behavioral, Experience, Problem-Solving, Company-Specific
Difficulty should be based on the seniority level implied by the job title
Suggested answer length should be between 60-180 seconds`

// GenerateQuestions returns exactly QuestionCount validated questions with
// unique ids. A reasoning-service failure is absorbed, never surfaced.
func (g *Gateway) GenerateQuestions(ctx context.Context, cfg models.SessionConfig) []models.InterviewQuestion {
	now := time.Now().UTC()

	raw, err := g.complete(ctx, questionSystemPrompt, fmt.Sprintf(
		"Job Title: %s\nCompany: %s\nJob Description: %s\n\nCandidate Resume: %s\n\nGenerate 5 interview questions tailored to this specific role and candidate background.",
		cfg.JobTitle, cfg.Company, cfg.JobDescription, cfg.ResumeText))
	if err != nil {
		g.log.WithError(err).Warn("question generation fell back to local templates")
		return fallbackQuestions(cfg.JobTitle, cfg.Company, now)
	}

	doc, ok := extractJSON(raw, '[', ']')
	if !ok {
		g.log.Warn("question completion had no JSON array; using local templates")
		return fallbackQuestions(cfg.JobTitle, cfg.Company, now)
	}

	var payloads []questionPayload
	if err := json.Unmarshal([]byte(doc), &payloads); err != nil || len(payloads) == 0 {
		g.log.WithError(err).Warn("question completion unparsable; using local templates")
		return fallbackQuestions(cfg.JobTitle, cfg.Company, now)
	}

	usedIDs := make(map[string]bool, QuestionCount)
	questions := make([]models.InterviewQuestion, 0, QuestionCount)
	for i, p := range payloads {
		if len(questions) == QuestionCount {
			break
		}
		questions = append(questions, validateQuestion(p, i, now, usedIDs))
	}

	// short sets are topped up from the fixed templates so the session
	// always holds exactly QuestionCount questions
	for _, q := range fallbackQuestions(cfg.JobTitle, cfg.Company, now) {
		if len(questions) == QuestionCount {
			break
		}
		if usedIDs[q.ID] {
			q.ID = fmt.Sprintf("%s_pad%d", q.ID, len(questions))
		}
		usedIDs[q.ID] = true
		questions = append(questions, q)
	}
	return questions
}

const feedbackSystemPrompt = `You are an expert interview coach providing detailed feedback on interview responses.

Analyze the candidate's response and provide feedback in this EXACT JSON format:
{
  "content_score": number (1-10),
  "communication_score": number (1-10),
  "confidence_score": number (1-10),
  "detailed_feedback": "detailed analysis string",
  "strengths": ["strength1", "strength2", "strength3"],
  "improvements": ["improvement1", "improvement2", "improvement3"]
}

Scoring criteria:
- Content Score: Relevance, completeness, accuracy of the answer
- Communication Score: Clarity, structure, articulation
- Confidence Score: Poise, conviction, professional demeanor

Provide constructive, specific feedback that helps the candidate improve.`

// GenerateFeedback scores one answered question. Never errors: any reasoning
// failure yields heuristic feedback computed from the transcript itself.
func (g *Gateway) GenerateFeedback(ctx context.Context, question models.InterviewQuestion, transcript string, durationSeconds int, jobCtx models.SessionConfig) models.ResponseFeedback {
	raw, err := g.complete(ctx, feedbackSystemPrompt, fmt.Sprintf(
		"Job Context:\nTitle: %s\nCompany: %s\nDescription: %s\n\nInterview Question: %s\n\nCandidate's Response: %s\n\nResponse Duration: %d seconds\n\nPlease analyze this response and provide detailed feedback with scores and actionable insights.",
		jobCtx.JobTitle, jobCtx.Company, jobCtx.JobDescription, question.Question, transcript, durationSeconds))
	if err != nil {
		g.log.WithError(err).Warn("feedback generation fell back to heuristic scoring")
		return g.localFeedback(transcript, durationSeconds)
	}

	doc, ok := extractJSON(raw, '{', '}')
	if !ok {
		g.log.Warn("feedback completion had no JSON object; using heuristic scoring")
		return g.localFeedback(transcript, durationSeconds)
	}

	var payload feedbackPayload
	if err := json.Unmarshal([]byte(doc), &payload); err != nil {
		g.log.WithError(err).Warn("feedback completion unparsable; using heuristic scoring")
		return g.localFeedback(transcript, durationSeconds)
	}
	return validateFeedback(payload)
}

func (g *Gateway) localFeedback(transcript string, durationSeconds int) models.ResponseFeedback {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return fallbackFeedback(transcript, durationSeconds, g.rng)
}

// complete performs the single bounded reasoning call. One attempt, no
// retries: a failure here costs the user nothing beyond the fallback path.
func (g *Gateway) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.reasoner == nil {
		return "", errReasonerUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.reasoner.Complete(callCtx, systemPrompt, userPrompt)
}

var errReasonerUnavailable = fmt.Errorf("reasoning service not configured")
