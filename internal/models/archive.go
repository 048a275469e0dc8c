package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// ResponseArchive is the per-response Postgres row kept for cross-session
// listing and analytics. The Mongo session document stays the source of
// truth; archive writes are best-effort.
type ResponseArchive struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	SessionID string `gorm:"column:session_id;type:uuid;index" json:"session_id"`

	QuestionID   string `gorm:"column:question_id;type:text" json:"question_id"`
	QuestionText string `gorm:"column:question_text;type:text" json:"question_text"`
	Transcript   string `gorm:"column:transcript;type:text" json:"transcript"`

	ResponseTimeSeconds int `gorm:"column:response_time_seconds" json:"response_time_seconds"`
	ContentScore        int `gorm:"column:content_score" json:"content_score"`
	CommunicationScore  int `gorm:"column:communication_score" json:"communication_score"`
	ConfidenceScore     int `gorm:"column:confidence_score" json:"confidence_score"`

	Strengths    pq.StringArray `gorm:"column:strengths;type:text[]" json:"strengths"`
	Improvements pq.StringArray `gorm:"column:improvements;type:text[]" json:"improvements"`

	// full feedback document as raw JSON
	Feedback datatypes.JSON `gorm:"column:feedback;type:jsonb" json:"feedback"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (ResponseArchive) TableName() string { return "response_archive" }
