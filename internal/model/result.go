package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the pass/fail verdict of a result.
type ResultStatus string

const (
	ResultStatusPassed ResultStatus = "Passed"
	ResultStatusFailed ResultStatus = "Failed"
)

// StatusFor returns Passed iff score reaches the passing score.
func StatusFor(score, passingScore int) ResultStatus {
	if score >= passingScore {
		return ResultStatusPassed
	}
	return ResultStatusFailed
}

// EvaluatedAnswer is the graded form of one question.
type EvaluatedAnswer struct {
	QuestionID        string             `json:"questionId"`
	QuestionText      string             `json:"questionText"`
	QuestionType      QuestionType       `json:"questionType"`
	Answer            AnswerValue        `json:"answer"`
	Options           []string           `json:"options,omitempty"`
	IsCorrect         bool               `json:"isCorrect"`
	Points            int                `json:"points"`
	MaxPoints         int                `json:"maxPoints"`
	CorrectAnswer     AnswerValue        `json:"correctAnswer"`
	AIScore           *int               `json:"aiScore,omitempty"`
	AIFeedback        string             `json:"aiFeedback,omitempty"`
	CodingTestResults []CodingTestResult `json:"codingTestResults,omitempty"`
}

// AssessmentResult is the persisted outcome of one candidate's submission.
type AssessmentResult struct {
	ID              uuid.UUID         `json:"id"`
	TestID          string            `json:"testId"`
	TestName        string            `json:"testName"`
	CandidateID     string            `json:"candidateId"`
	CandidateEmail  string            `json:"candidateEmail"`
	CandidateName   string            `json:"candidateName"`
	Score           int               `json:"score"`
	Status          ResultStatus      `json:"status"`
	Duration        int               `json:"duration"`
	TabSwitchCount  int               `json:"tabSwitchCount"`
	Answers         []EvaluatedAnswer `json:"answers"`
	TotalPoints     int               `json:"totalPoints"`
	EarnedPoints    int               `json:"earnedPoints"`
	CorrectAnswers  int               `json:"correctAnswers"`
	ResultsDeclared bool              `json:"resultsDeclared"`
	DeclaredAt      *time.Time        `json:"declaredAt,omitempty"`
	DeclaredBy      *string           `json:"declaredBy,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// SubmitAssessmentRequest is the payload for scoring a finished attempt.
type SubmitAssessmentRequest struct {
	Answers        []SubmittedAnswer `json:"answers" binding:"dive"`
	Duration       int               `json:"duration" binding:"min=0"`
	TabSwitchCount int               `json:"tabSwitchCount" binding:"min=0"`
	SessionToken   string            `json:"sessionToken" binding:"omitempty,max=256"`
}

// ScoreSummary is returned to the candidate after submission.
type ScoreSummary struct {
	ResultID         uuid.UUID         `json:"resultId"`
	Score            int               `json:"score"`
	Status           ResultStatus      `json:"status"`
	EvaluatedAnswers []EvaluatedAnswer `json:"evaluatedAnswers"`
	TotalPoints      int               `json:"totalPoints"`
	EarnedPoints     int               `json:"earnedPoints"`
	CorrectAnswers   int               `json:"correctAnswers"`
}

// ResultListQuery filters the employer results listing.
type ResultListQuery struct {
	Declared *bool `form:"declared"`
	Page     int   `form:"page" binding:"omitempty,min=1"`
	PerPage  int   `form:"per_page" binding:"omitempty,min=1,max=100"`
}
