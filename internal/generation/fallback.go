package generation

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/prepdeck/prepdeck/internal/models"
)

// Deterministic fallback generator. Whenever the reasoning service is
// unreachable, misconfigured, or returns an unparsable payload, these
// functions produce plausible output locally so the interview flow never
// stalls or errors in front of the candidate.

func fallbackQuestions(jobTitle, company string, now time.Time) []models.InterviewQuestion {
	ms := now.UnixMilli()
	return []models.InterviewQuestion{
		{
			ID:                     fmt.Sprintf("q_%d_1", ms),
			Question:               fmt.Sprintf("Tell me about yourself and why you're interested in the %s position at %s.", jobTitle, company),
			Category:               models.CategoryBehavioral,
			Difficulty:             models.DifficultyEasy,
			SuggestedAnswerSeconds: 90,
		},
		{
			ID:                     fmt.Sprintf("q_%d_2", ms),
			Question:               "Describe a challenging project you've worked on and how you overcame the obstacles.",
			Category:               models.CategoryExperience,
			Difficulty:             models.DifficultyMedium,
			SuggestedAnswerSeconds: 120,
		},
		{
			ID:                     fmt.Sprintf("q_%d_3", ms),
			Question:               "How do you stay updated with the latest technologies and industry trends?",
			Category:               models.CategoryTechnical,
			Difficulty:             models.DifficultyEasy,
			SuggestedAnswerSeconds: 75,
		},
		{
			ID:                     fmt.Sprintf("q_%d_4", ms),
			Question:               "Walk me through how you would approach solving a complex problem you've never encountered before.",
			Category:               models.CategoryProblemSolving,
			Difficulty:             models.DifficultyHard,
			SuggestedAnswerSeconds: 150,
		},
		{
			ID:                     fmt.Sprintf("q_%d_5", ms),
			Question:               fmt.Sprintf("What do you know about %s and why do you want to work here specifically?", company),
			Category:               models.CategoryCompanySpecific,
			Difficulty:             models.DifficultyMedium,
			SuggestedAnswerSeconds: 100,
		},
	}
}

var (
	cannedStrengths = []string{
		"Clear and articulate communication",
		"Relevant content that addresses the question",
		"Professional and confident delivery",
		"Good use of examples and experiences",
		"Appropriate response length",
	}
	cannedImprovements = []string{
		"Add more specific metrics and quantifiable results",
		"Structure your response with a clearer beginning, middle, and end",
		"Include more concrete examples from your experience",
		"Show more enthusiasm and passion for the role",
		"Practice maintaining eye contact and confident body language",
	}
)

// fallbackFeedback scores a response from pace and length heuristics. Safe
// for empty transcripts and zero duration; the jitter terms are bounded so
// every score stays inside [1,10] for all inputs.
func fallbackFeedback(transcript string, durationSeconds int, rng *rand.Rand) models.ResponseFeedback {
	wordCount := len(strings.Fields(transcript))

	var wordsPerMinute float64
	if durationSeconds > 0 {
		wordsPerMinute = float64(wordCount) / float64(durationSeconds) * 60
	}

	contentScore := clampFloat(float64(wordCount/10)+rng.Float64()*3, 4, 10)

	communicationScore := 8.0
	if wordsPerMinute <= 120 {
		communicationScore = clampFloat(6+rng.Float64()*2, 4, 10)
	}

	confidenceScore := 7.0
	if durationSeconds <= 30 {
		confidenceScore = clampFloat(5+rng.Float64()*3, 4, 10)
	}

	detailed := fmt.Sprintf(
		"Your response demonstrated good understanding of the question. You provided relevant information and maintained a professional tone throughout. "+
			"The response length of %d seconds was appropriate, and your speaking pace of approximately %d words per minute was clear and easy to follow. "+
			"Consider adding more specific examples to strengthen your answer and show more concrete evidence of your experience.",
		durationSeconds, int(math.Round(wordsPerMinute)))

	return models.ResponseFeedback{
		ContentScore:       int(math.Round(contentScore)),
		CommunicationScore: int(math.Round(communicationScore)),
		ConfidenceScore:    int(math.Round(confidenceScore)),
		DetailedFeedback:   detailed,
		Strengths:          append([]string(nil), cannedStrengths[:3]...),
		Improvements:       append([]string(nil), cannedImprovements[:3]...),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
