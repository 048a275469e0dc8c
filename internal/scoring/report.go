package scoring

import (
	"time"

	"github.com/prepdeck/prepdeck/internal/models"
)

// Report is the serializable session report handed to external formatters.
type Report struct {
	SessionID   string                     `json:"session_id"`
	Config      models.SessionConfig       `json:"config"`
	Questions   []models.InterviewQuestion `json:"questions"`
	Responses   []models.InterviewResponse `json:"responses"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Summary     Summary                    `json:"summary"`
}

// BuildReport derives the full report from a session. Pure.
func BuildReport(s *models.Session, now time.Time) Report {
	return Report{
		SessionID:   s.SessionID,
		Config:      s.Config,
		Questions:   s.Questions,
		Responses:   s.Responses,
		GeneratedAt: now.UTC(),
		Summary:     Summarize(s.Responses, len(s.Questions)),
	}
}
