package grading

import (
	"context"
	"testing"

	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func codingRuns(passed, total int) []model.CodingTestResult {
	out := make([]model.CodingTestResult, total)
	for i := range out {
		out[i].Passed = i < passed
	}
	return out
}

func TestScoreTest_EndToEnd(t *testing.T) {
	test := &model.Test{
		ID:           "t1",
		PassingScore: intPtr(80),
		Sections: []model.Section{{
			Title: "Main",
			Questions: []model.Question{
				{ID: "q1", Type: model.QuestionTypeMultipleChoice, Points: 50, CorrectAnswer: model.Scalar("B")},
				{ID: "q2", Type: model.QuestionTypeCoding, Points: 50},
			},
		}},
	}
	answers := []model.SubmittedAnswer{
		{QuestionID: "q1", Answer: model.Scalar("B")},
		{QuestionID: "q2", CodingTestResults: codingRuns(3, 4)},
	}

	out := NewGrader(nil).ScoreTest(context.Background(), test, answers)

	assert.Equal(t, 88, out.EarnedPoints)
	assert.Equal(t, 100, out.TotalPoints)
	assert.Equal(t, 88, out.Score)
	assert.Equal(t, 2, out.CorrectAnswers)
	assert.Equal(t, model.ResultStatusPassed, out.Status)
	require.Len(t, out.EvaluatedAnswers, 2)
	assert.Equal(t, "q1", out.EvaluatedAnswers[0].QuestionID)
	assert.Equal(t, "q2", out.EvaluatedAnswers[1].QuestionID)
}

func TestScoreTest_UnansweredStillCounts(t *testing.T) {
	test := &model.Test{
		Sections: []model.Section{
			{Questions: []model.Question{{ID: "a", Type: model.QuestionTypeMultipleChoice, Points: 10, CorrectAnswer: model.Scalar("x")}}},
			{Questions: []model.Question{{ID: "b", Type: model.QuestionTypeCoding, Points: 30}}},
		},
	}

	out := NewGrader(nil).ScoreTest(context.Background(), test, []model.SubmittedAnswer{{QuestionID: "a", Answer: model.Scalar("x")}})

	assert.Equal(t, 40, out.TotalPoints)
	assert.Equal(t, 10, out.EarnedPoints)
	assert.Equal(t, 25, out.Score)
	assert.Equal(t, model.ResultStatusFailed, out.Status)
}

func TestScoreTest_NoQuestions(t *testing.T) {
	out := NewGrader(nil).ScoreTest(context.Background(), &model.Test{}, nil)

	assert.Equal(t, 0, out.TotalPoints)
	assert.Equal(t, 0, out.Score)
	assert.Equal(t, model.ResultStatusFailed, out.Status)
	assert.Empty(t, out.EvaluatedAnswers)
}

func TestScoreTest_PassBoundary(t *testing.T) {
	// 10 questions worth 10 points each; score == number correct * 10
	build := func(passing *int) *model.Test {
		qs := make([]model.Question, 10)
		for i := range qs {
			qs[i] = model.Question{ID: string(rune('a' + i)), Type: model.QuestionTypeMultipleChoice, Points: 10, CorrectAnswer: model.Scalar("y")}
		}
		return &model.Test{PassingScore: passing, Sections: []model.Section{{Questions: qs}}}
	}
	answersFor := func(correct int) []model.SubmittedAnswer {
		out := make([]model.SubmittedAnswer, 10)
		for i := range out {
			v := "n"
			if i < correct {
				v = "y"
			}
			out[i] = model.SubmittedAnswer{QuestionID: string(rune('a' + i)), Answer: model.Scalar(v)}
		}
		return out
	}

	tests := []struct {
		name    string
		passing *int
		correct int
		status  model.ResultStatus
	}{
		{name: "equal to passing", passing: intPtr(60), correct: 6, status: model.ResultStatusPassed},
		{name: "just below passing", passing: intPtr(60), correct: 5, status: model.ResultStatusFailed},
		{name: "default threshold met", passing: nil, correct: 7, status: model.ResultStatusPassed},
		{name: "default threshold missed", passing: nil, correct: 6, status: model.ResultStatusFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := NewGrader(nil).ScoreTest(context.Background(), build(tc.passing), answersFor(tc.correct))
			assert.Equal(t, tc.correct*10, out.Score)
			assert.Equal(t, tc.status, out.Status)
		})
	}
}

func TestStatusFor_OffByOne(t *testing.T) {
	for _, passing := range []int{1, 50, 70, 100} {
		assert.Equal(t, model.ResultStatusPassed, model.StatusFor(passing, passing))
		assert.Equal(t, model.ResultStatusFailed, model.StatusFor(passing-1, passing))
	}
}

func TestScoreTest_WrittenAnswersInOrder(t *testing.T) {
	e := new(MockEvaluator)
	e.On("Evaluate", mock.Anything, "first", "alpha").Return(Evaluation{QualityScore: 100, Feedback: "great"})
	e.On("Evaluate", mock.Anything, "second", "beta").Return(Evaluation{QualityScore: 10, Feedback: "weak"})

	test := &model.Test{Sections: []model.Section{{Questions: []model.Question{
		{ID: "w1", Type: model.QuestionTypeWrittenAnswer, Text: "first", Points: 10},
		{ID: "m1", Type: model.QuestionTypeMultipleChoice, Points: 10, CorrectAnswer: model.Scalar("a")},
		{ID: "w2", Type: model.QuestionTypeWrittenAnswer, Text: "second", Points: 10},
	}}}}

	out := NewGrader(e, WithConcurrency(2)).ScoreTest(context.Background(), test, []model.SubmittedAnswer{
		{QuestionID: "w2", Answer: model.Scalar("beta")},
		{QuestionID: "w1", Answer: model.Scalar("alpha")},
		{QuestionID: "m1", Answer: model.Scalar("a")},
	})

	require.Len(t, out.EvaluatedAnswers, 3)
	assert.Equal(t, "great", out.EvaluatedAnswers[0].AIFeedback)
	assert.Equal(t, "m1", out.EvaluatedAnswers[1].QuestionID)
	assert.Equal(t, "weak", out.EvaluatedAnswers[2].AIFeedback)
	assert.Equal(t, 20, out.EarnedPoints)
	assert.Equal(t, 2, out.CorrectAnswers)
	e.AssertExpectations(t)
}

func TestMatchAnswer(t *testing.T) {
	answers := []model.SubmittedAnswer{
		{QuestionID: "inv-7-q2", Answer: model.Scalar("prefixed")},
		{QuestionID: "q1", Answer: model.Scalar("exact")},
		{QuestionID: "abc-q1", Answer: model.Scalar("suffix")},
	}

	tests := []struct {
		name string
		qid  string
		want string
	}{
		{name: "exact wins over suffix", qid: "q1", want: "exact"},
		{name: "prefixed id", qid: "q2", want: "prefixed"},
		{name: "multi-segment suffix", qid: "7-q2", want: "prefixed"},
		{name: "missing", qid: "q3", want: ""},
		{name: "empty id", qid: "", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchAnswer(answers, tc.qid)
			if tc.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.Answer.Text())
		})
	}
}
