// Package grading scores answers and whole test attempts. Nothing here
// touches storage; the written-answer path is the only outbound call and it
// goes through the Evaluator interface.
package grading

import (
	"context"
	"math"

	"github.com/stemsi/exstem-assess/internal/model"
)

// Feedback strings returned for written answers.
const (
	FeedbackNoAnswer             = "No answer provided"
	FeedbackEvaluatorUnavailable = "AI evaluation unavailable"
	FeedbackEvaluatorFailed      = "AI evaluation failed"
)

// MinWrittenQuality is the lowest evaluator score that still earns points.
const MinWrittenQuality = 15

// Evaluation is a text evaluator's verdict on a written answer.
type Evaluation struct {
	QualityScore int
	Feedback     string
}

// Evaluator judges the quality of a free-text answer on a 0-100 scale.
// Implementations must not fail: they degrade to a zero score with
// explanatory feedback instead.
type Evaluator interface {
	Evaluate(ctx context.Context, questionText, answerText string) Evaluation
}

// Grader dispatches each question to the grader for its declared type.
type Grader struct {
	evaluator   Evaluator
	concurrency int
}

// Option configures a Grader.
type Option func(*Grader)

// WithConcurrency bounds how many written answers are evaluated at once.
func WithConcurrency(n int) Option {
	return func(g *Grader) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// NewGrader creates a Grader. A nil evaluator makes every written answer
// degrade to "AI evaluation unavailable".
func NewGrader(evaluator Evaluator, opts ...Option) *Grader {
	g := &Grader{evaluator: evaluator, concurrency: 4}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Grade scores one answer. A nil answer is treated as unanswered.
func (g *Grader) Grade(ctx context.Context, q model.Question, a *model.SubmittedAnswer) model.EvaluatedAnswer {
	if a == nil {
		a = &model.SubmittedAnswer{QuestionID: q.ID}
	}

	switch q.Type.Normalize() {
	case model.QuestionTypeMultipleChoice:
		return GradeMultipleChoice(q, *a)
	case model.QuestionTypeCoding:
		return GradeCoding(q, *a)
	case model.QuestionTypeWrittenAnswer:
		return GradeWritten(ctx, g.evaluator, q, *a)
	default:
		return GradeUnknown(q, *a)
	}
}

// GradeUnknown echoes the answer through with no credit.
func GradeUnknown(q model.Question, a model.SubmittedAnswer) model.EvaluatedAnswer {
	ev := baseEvaluation(q, a)
	ev.CodingTestResults = a.CodingTestResults
	return ev
}

func baseEvaluation(q model.Question, a model.SubmittedAnswer) model.EvaluatedAnswer {
	return model.EvaluatedAnswer{
		QuestionID:    q.ID,
		QuestionText:  q.Text,
		QuestionType:  q.Type,
		Answer:        a.Answer,
		Options:       q.Options,
		MaxPoints:     q.Points,
		CorrectAnswer: q.CorrectAnswer,
	}
}

// proportional returns round(max * num / den), or 0 when den is not positive.
func proportional(max, num, den int) int {
	if den <= 0 {
		return 0
	}
	return int(math.Round(float64(max) * float64(num) / float64(den)))
}
