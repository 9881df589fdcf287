package grading

import (
	"sort"
	"strings"

	"github.com/stemsi/exstem-assess/internal/model"
)

// GradeMultipleChoice awards full points when the submitted answer matches
// the correct one after normalization, or when both resolve to the same
// option in the question's option list.
func GradeMultipleChoice(q model.Question, a model.SubmittedAnswer) model.EvaluatedAnswer {
	ev := baseEvaluation(q, a)

	if a.Answer.IsBlank() {
		return ev
	}

	submitted, correct := collapse(a.Answer), collapse(q.CorrectAnswer)
	if answersEqual(submitted, correct) || sameOption(q.Options, submitted, correct) {
		ev.IsCorrect = true
		ev.Points = q.Points
	}
	return ev
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizedList(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = normalize(v)
	}
	sort.Strings(out)
	return out
}

// collapse turns a one-item list into a scalar, so a single-select answer
// sent as ["B"] grades the same as "B".
func collapse(v model.AnswerValue) model.AnswerValue {
	if v.IsList() {
		if values := v.Values(); len(values) == 1 {
			return model.Scalar(values[0])
		}
	}
	return v
}

// answersEqual compares two values after trim+lowercase. Lists compare as
// sorted sets of items; a list of two or more never equals a scalar.
func answersEqual(submitted, correct model.AnswerValue) bool {
	if !correct.IsSet() {
		return false
	}
	if submitted.IsList() != correct.IsList() {
		return false
	}

	if !submitted.IsList() {
		return normalize(submitted.Text()) == normalize(correct.Text())
	}

	s, c := normalizedList(submitted.Values()), normalizedList(correct.Values())
	if len(s) != len(c) {
		return false
	}
	for i := range s {
		if s[i] != c[i] {
			return false
		}
	}
	return true
}

// sameOption reports whether both scalar values point at the same entry of
// options, whether written as the option text or as its letter label.
func sameOption(options []string, submitted, correct model.AnswerValue) bool {
	if len(options) == 0 || submitted.IsList() || correct.IsList() {
		return false
	}
	si := optionIndex(options, submitted.Text())
	if si < 0 {
		return false
	}
	return si == optionIndex(options, correct.Text())
}

// optionIndex resolves v against options by text first, then by a single
// letter label (A, B, C ...). Returns -1 when nothing matches.
func optionIndex(options []string, v string) int {
	n := normalize(v)
	if n == "" {
		return -1
	}
	for i, opt := range options {
		if normalize(opt) == n {
			return i
		}
	}
	if len(n) == 1 && n[0] >= 'a' && n[0] <= 'z' {
		if idx := int(n[0] - 'a'); idx < len(options) {
			return idx
		}
	}
	return -1
}
