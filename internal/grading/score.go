package grading

import (
	"context"
	"strings"

	"github.com/stemsi/exstem-assess/internal/model"
	"golang.org/x/sync/errgroup"
)

// Outcome aggregates the grading of every question in a test.
type Outcome struct {
	EvaluatedAnswers []model.EvaluatedAnswer
	TotalPoints      int
	EarnedPoints     int
	CorrectAnswers   int
	Score            int
	Status           model.ResultStatus
}

// ScoreTest grades every question of test, answered or not, in section order.
// Written answers are evaluated concurrently; the output order is stable.
func (g *Grader) ScoreTest(ctx context.Context, test *model.Test, answers []model.SubmittedAnswer) Outcome {
	var questions []model.Question
	for _, s := range test.Sections {
		questions = append(questions, s.Questions...)
	}

	evaluated := make([]model.EvaluatedAnswer, len(questions))

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)

	for i, q := range questions {
		a := MatchAnswer(answers, q.ID)
		if q.Type.Normalize() != model.QuestionTypeWrittenAnswer {
			evaluated[i] = g.Grade(ctx, q, a)
			continue
		}
		eg.Go(func() error {
			evaluated[i] = g.Grade(ctx, q, a)
			return nil
		})
	}
	_ = eg.Wait() // graders never return errors

	out := Outcome{EvaluatedAnswers: evaluated}
	for _, ev := range evaluated {
		out.TotalPoints += ev.MaxPoints
		out.EarnedPoints += ev.Points
		if ev.IsCorrect {
			out.CorrectAnswers++
		}
	}
	out.Score = proportional(100, out.EarnedPoints, out.TotalPoints)
	out.Status = model.StatusFor(out.Score, test.EffectivePassingScore())
	return out
}

// MatchAnswer finds the submission for questionID. Submitted ids may carry
// an invitation-scoped prefix ("inv42-q1"), so a suffix match on the last
// "-" segment is accepted when there is no exact hit.
func MatchAnswer(answers []model.SubmittedAnswer, questionID string) *model.SubmittedAnswer {
	if questionID == "" {
		return nil
	}
	for i := range answers {
		if answers[i].QuestionID == questionID {
			return &answers[i]
		}
	}
	for i := range answers {
		if idMatches(answers[i].QuestionID, questionID) {
			return &answers[i]
		}
	}
	return nil
}

func idMatches(submittedID, questionID string) bool {
	if strings.HasSuffix(submittedID, "-"+questionID) {
		return true
	}
	if idx := strings.LastIndex(submittedID, "-"); idx >= 0 {
		return submittedID[idx+1:] == questionID
	}
	return false
}
