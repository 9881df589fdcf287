package grading

import "github.com/stemsi/exstem-assess/internal/model"

// GradeCoding awards points in proportion to passed test cases.
func GradeCoding(q model.Question, a model.SubmittedAnswer) model.EvaluatedAnswer {
	ev := baseEvaluation(q, a)
	ev.CodingTestResults = a.CodingTestResults

	passed := 0
	for _, tr := range a.CodingTestResults {
		if tr.Passed {
			passed++
		}
	}

	ev.Points = proportional(q.Points, passed, len(a.CodingTestResults))
	ev.IsCorrect = ev.Points > 0
	return ev
}
