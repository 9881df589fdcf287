package grading

import (
	"context"

	"github.com/stemsi/exstem-assess/internal/model"
)

// GradeWritten asks the evaluator for a quality score and converts it into
// points. Scores under MinWrittenQuality earn nothing. Blank answers never
// reach the evaluator.
func GradeWritten(ctx context.Context, e Evaluator, q model.Question, a model.SubmittedAnswer) model.EvaluatedAnswer {
	ev := baseEvaluation(q, a)

	if a.Answer.IsBlank() {
		zero := 0
		ev.AIScore = &zero
		ev.AIFeedback = FeedbackNoAnswer
		return ev
	}

	var result Evaluation
	if e == nil {
		result = Evaluation{Feedback: FeedbackEvaluatorUnavailable}
	} else {
		result = e.Evaluate(ctx, q.Text, a.Answer.Text())
	}

	quality := clampQuality(result.QualityScore)
	ev.AIScore = &quality
	ev.AIFeedback = result.Feedback

	if quality >= MinWrittenQuality {
		ev.Points = proportional(q.Points, quality, 100)
	}
	ev.IsCorrect = ev.Points > 0
	return ev
}

func clampQuality(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
