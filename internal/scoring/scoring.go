package scoring

import (
	"fmt"

	"github.com/prepdeck/prepdeck/internal/models"
)

// Summary holds derived score aggregates. Defined is false when there are no
// responses; the per-category means and OverallScore are meaningless then and
// callers must guard before rendering.
type Summary struct {
	Defined           bool    `json:"defined"`
	TotalQuestions    int     `json:"total_questions"`
	AnsweredQuestions int     `json:"answered_questions"`
	CompletionRate    float64 `json:"completion_rate"`

	ContentMean       float64 `json:"content_mean"`
	CommunicationMean float64 `json:"communication_mean"`
	ConfidenceMean    float64 `json:"confidence_mean"`
	OverallScore      float64 `json:"overall_score"`

	TotalResponseTimeSeconds int `json:"total_response_time_seconds"`
}

// Summarize recomputes all aggregates from the response collection. Pure;
// nothing is cached.
func Summarize(responses []models.InterviewResponse, totalQuestions int) Summary {
	s := Summary{
		TotalQuestions:    totalQuestions,
		AnsweredQuestions: len(responses),
	}
	if totalQuestions > 0 {
		s.CompletionRate = float64(len(responses)) / float64(totalQuestions) * 100
	}
	for _, r := range responses {
		s.TotalResponseTimeSeconds += r.ResponseTimeSeconds
	}
	if len(responses) == 0 {
		return s
	}

	var content, communication, confidence int
	for _, r := range responses {
		content += r.Feedback.ContentScore
		communication += r.Feedback.CommunicationScore
		confidence += r.Feedback.ConfidenceScore
	}
	n := float64(len(responses))
	s.ContentMean = float64(content) / n
	s.CommunicationMean = float64(communication) / n
	s.ConfidenceMean = float64(confidence) / n
	s.OverallScore = (s.ContentMean + s.CommunicationMean + s.ConfidenceMean) / 3
	s.Defined = true
	return s
}

// OverallFeedback renders the completion summary sentence stored on the
// session.
func OverallFeedback(s Summary) string {
	return fmt.Sprintf(
		"Interview completed with %d out of %d questions answered. Average score: %.1f/10. Great job on completing the interview practice session!",
		s.AnsweredQuestions, s.TotalQuestions, s.OverallScore)
}
