package model

import "strings"

// QuestionType is the declared grading strategy of a question.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MultipleChoice"
	QuestionTypeCoding         QuestionType = "Coding"
	QuestionTypeWrittenAnswer  QuestionType = "WrittenAnswer"
)

// Normalize maps loosely spelled types ("multiple-choice", "Written Answer",
// "mcq") onto the canonical constants. Unknown types are returned unchanged.
func (t QuestionType) Normalize() QuestionType {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(string(t))))

	switch key {
	case "multiplechoice", "mcq", "choice":
		return QuestionTypeMultipleChoice
	case "coding", "code":
		return QuestionTypeCoding
	case "writtenanswer", "written", "essay", "text":
		return QuestionTypeWrittenAnswer
	default:
		return t
	}
}

// Question is a single test item. Read-only to this service.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	Points        int          `json:"points"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer AnswerValue  `json:"correctAnswer"`
}

// Section groups questions in display order.
type Section struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Test is an assessment definition owned by an employer.
type Test struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	EmployerID      string    `json:"employerId"`
	PassingScore    *int      `json:"passingScore,omitempty"`
	DurationSeconds int       `json:"durationSeconds"`
	Sections        []Section `json:"sections"`
}

// DefaultPassingScore applies when a test does not set one.
const DefaultPassingScore = 70

// EffectivePassingScore returns the configured threshold or the default.
func (t *Test) EffectivePassingScore() int {
	if t.PassingScore == nil {
		return DefaultPassingScore
	}
	return *t.PassingScore
}

// QuestionCount counts questions across all sections.
func (t *Test) QuestionCount() int {
	n := 0
	for _, s := range t.Sections {
		n += len(s.Questions)
	}
	return n
}
