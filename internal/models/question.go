package models

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type QuestionCategory string

const (
	CategoryTechnical       QuestionCategory = "Technical"
	CategoryBehavioral      QuestionCategory = "Behavioral"
	CategoryExperience      QuestionCategory = "Experience"
	CategoryProblemSolving  QuestionCategory = "Problem-Solving"
	CategoryCompanySpecific QuestionCategory = "Company-Specific"
	CategoryGeneral         QuestionCategory = "General"
)

// InterviewQuestion is produced by the generation gateway at setup time and
// immutable afterwards. The question set for a session is a fixed-order
// sequence.
type InterviewQuestion struct {
	ID                     string           `bson:"id" json:"id"`
	Question               string           `bson:"question" json:"question"`
	Category               QuestionCategory `bson:"category" json:"category"`
	Difficulty             Difficulty       `bson:"difficulty" json:"difficulty"`
	SuggestedAnswerSeconds int              `bson:"suggested_answer_seconds" json:"suggested_answer_length"`
}
