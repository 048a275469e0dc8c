package models

import "time"

// ResponseFeedback scores are always present and clamped to [1,10] before
// they enter the model; the validation layer defaults missing scores to 7.
type ResponseFeedback struct {
	ContentScore       int      `bson:"content_score" json:"content_score"`
	CommunicationScore int      `bson:"communication_score" json:"communication_score"`
	ConfidenceScore    int      `bson:"confidence_score" json:"confidence_score"`
	DetailedFeedback   string   `bson:"detailed_feedback" json:"detailed_feedback"`
	Strengths          []string `bson:"strengths" json:"strengths"`
	Improvements       []string `bson:"improvements" json:"improvements"`
}

// InterviewResponse is created exactly once per answered question and
// immutable afterwards. Re-recording replaces the whole response for the
// question id, never appends a duplicate.
type InterviewResponse struct {
	QuestionID          string           `bson:"question_id" json:"question_id"`
	Transcript          string           `bson:"transcript" json:"transcript"`
	ResponseTimeSeconds int              `bson:"response_time_seconds" json:"response_time"`
	AudioURL            string           `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	VideoURL            string           `bson:"video_url,omitempty" json:"video_url,omitempty"`
	Feedback            ResponseFeedback `bson:"feedback" json:"feedback"`
	CreatedAt           time.Time        `bson:"created_at" json:"created_at"`
}
