package generation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/prepdeck/prepdeck/internal/models"
)

// Wire shapes for reasoning-service output. Pointer fields distinguish
// "absent" from zero so the clamping layer can apply defaults.
type questionPayload struct {
	ID                    string   `json:"id"`
	Question              string   `json:"question"`
	Category              string   `json:"category"`
	Difficulty            string   `json:"difficulty"`
	SuggestedAnswerLength *float64 `json:"suggested_answer_length"`
}

type feedbackPayload struct {
	ContentScore       *float64 `json:"content_score"`
	CommunicationScore *float64 `json:"communication_score"`
	ConfidenceScore    *float64 `json:"confidence_score"`
	DetailedFeedback   string   `json:"detailed_feedback"`
	Strengths          []string `json:"strengths"`
	Improvements       []string `json:"improvements"`
}

const (
	defaultScore            = 7
	defaultSuggestedSeconds = 120
	maxListEntries          = 5
	defaultDetailedFeedback = "Good response overall. Keep practicing to improve further."
)

var (
	defaultStrengths    = []string{"Clear communication", "Relevant examples", "Professional demeanor"}
	defaultImprovements = []string{"Add more specific details", "Structure your response better", "Show more enthusiasm"}
)

func clampScore(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return defaultScore
	}
	n := int(math.Round(*v))
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func normalizeDifficulty(s string) models.Difficulty {
	switch models.Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case models.DifficultyEasy:
		return models.DifficultyEasy
	case models.DifficultyHard:
		return models.DifficultyHard
	default:
		return models.DifficultyMedium
	}
}

func normalizeCategory(s string) models.QuestionCategory {
	switch c := models.QuestionCategory(strings.TrimSpace(s)); c {
	case models.CategoryTechnical, models.CategoryBehavioral, models.CategoryExperience,
		models.CategoryProblemSolving, models.CategoryCompanySpecific:
		return c
	default:
		return models.CategoryGeneral
	}
}

func clampSuggestedSeconds(v *float64) int {
	if v == nil || math.IsNaN(*v) || *v <= 0 {
		return defaultSuggestedSeconds
	}
	return int(math.Round(*v))
}

// sanitizeList trims and drops blank entries, truncates to five, and falls
// back to the canned list when nothing usable remains.
func sanitizeList(items, canned []string) []string {
	out := make([]string, 0, maxListEntries)
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == maxListEntries {
			break
		}
	}
	if len(out) == 0 {
		return append([]string(nil), canned...)
	}
	return out
}

// validateQuestion bounds one upstream question into the canonical model.
// usedIDs guards per-session id uniqueness; blank or duplicate ids are
// replaced with a time-based one.
func validateQuestion(p questionPayload, index int, now time.Time, usedIDs map[string]bool) models.InterviewQuestion {
	id := strings.TrimSpace(p.ID)
	if id == "" || usedIDs[id] {
		id = fmt.Sprintf("q_%d_%d", now.UnixMilli(), index)
	}
	usedIDs[id] = true

	text := strings.TrimSpace(p.Question)
	if text == "" {
		text = fmt.Sprintf("Sample question %d", index+1)
	}

	return models.InterviewQuestion{
		ID:                     id,
		Question:               text,
		Category:               normalizeCategory(p.Category),
		Difficulty:             normalizeDifficulty(p.Difficulty),
		SuggestedAnswerSeconds: clampSuggestedSeconds(p.SuggestedAnswerLength),
	}
}

// validateFeedback bounds upstream feedback into the canonical model. All
// three scores come out as integers in [1,10] no matter what arrived.
func validateFeedback(p feedbackPayload) models.ResponseFeedback {
	detailed := strings.TrimSpace(p.DetailedFeedback)
	if detailed == "" {
		detailed = defaultDetailedFeedback
	}
	return models.ResponseFeedback{
		ContentScore:       clampScore(p.ContentScore),
		CommunicationScore: clampScore(p.CommunicationScore),
		ConfidenceScore:    clampScore(p.ConfidenceScore),
		DetailedFeedback:   detailed,
		Strengths:          sanitizeList(p.Strengths, defaultStrengths),
		Improvements:       sanitizeList(p.Improvements, defaultImprovements),
	}
}

// extractJSON tolerates completions that wrap the JSON document in prose or
// markdown fences by slicing from the first opening token to the matching
// last closing token.
func extractJSON(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	end := strings.LastIndexByte(raw, close)
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
