package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// SessionConfig is immutable once question generation has succeeded.
type SessionConfig struct {
	JobTitle       string `bson:"job_title" json:"job_title"`
	Company        string `bson:"company" json:"company"`
	JobDescription string `bson:"job_description" json:"job_description"`
	ResumeText     string `bson:"resume_text" json:"resume_text"`
}

type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`

	Config    SessionConfig       `bson:"config" json:"config"`
	Questions []InterviewQuestion `bson:"questions" json:"questions"`
	Responses []InterviewResponse `bson:"responses" json:"responses"`

	Status          SessionStatus `bson:"status" json:"status"`
	CompletionRate  float64       `bson:"completion_rate" json:"completion_rate"`
	OverallFeedback string        `bson:"overall_feedback,omitempty" json:"overall_feedback,omitempty"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// HasResponseFor reports whether a committed response exists for the question.
// Responses are stored in answer order, so position is never a valid lookup
// key; always resolve by question id.
func (s *Session) HasResponseFor(questionID string) bool {
	return s.ResponseFor(questionID) != nil
}

// ResponseFor returns the committed response for questionID, or nil.
func (s *Session) ResponseFor(questionID string) *InterviewResponse {
	for i := range s.Responses {
		if s.Responses[i].QuestionID == questionID {
			return &s.Responses[i]
		}
	}
	return nil
}
