package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerValue is a submitted or expected answer: a single string, a list of
// strings, or nothing at all.
type AnswerValue struct {
	scalar string
	list   []string
	isList bool
	set    bool
}

// Scalar wraps a single string answer.
func Scalar(s string) AnswerValue {
	return AnswerValue{scalar: s, set: true}
}

// List wraps a multi-select answer.
func List(values ...string) AnswerValue {
	cp := make([]string, len(values))
	copy(cp, values)
	return AnswerValue{list: cp, isList: true, set: true}
}

// IsList reports whether the value holds a list.
func (v AnswerValue) IsList() bool { return v.isList }

// IsSet reports whether any value was provided, even an empty one.
func (v AnswerValue) IsSet() bool { return v.set }

// Text returns the scalar form; lists are joined with ", ".
func (v AnswerValue) Text() string {
	if v.isList {
		return strings.Join(v.list, ", ")
	}
	return v.scalar
}

// Values returns the list form; a non-empty scalar becomes a one-item list.
func (v AnswerValue) Values() []string {
	if v.isList {
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	}
	if v.scalar == "" {
		return nil
	}
	return []string{v.scalar}
}

// IsBlank reports an absent answer, an empty or whitespace-only string, or an
// empty list.
func (v AnswerValue) IsBlank() bool {
	if !v.set {
		return true
	}
	if v.isList {
		return len(v.list) == 0
	}
	return strings.TrimSpace(v.scalar) == ""
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch {
	case !v.set:
		return []byte("null"), nil
	case v.isList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.scalar)
	}
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = AnswerValue{}

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Scalar(s)
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			var item AnswerValue
			if err := item.UnmarshalJSON(r); err != nil {
				return err
			}
			if item.isList {
				return fmt.Errorf("answer: nested lists are not supported")
			}
			if item.set {
				items = append(items, item.scalar)
			}
		}
		*v = List(items...)
		return nil
	case '{':
		return fmt.Errorf("answer: object values are not supported")
	default:
		// numbers and booleans keep their literal text
		*v = Scalar(string(data))
		return nil
	}
}

// CodingTestResult is the outcome of one test case run by the code runner.
type CodingTestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	Passed         bool   `json:"passed"`
}

// SubmittedAnswer is what the candidate sent for one question.
type SubmittedAnswer struct {
	QuestionID        string             `json:"questionId" binding:"required"`
	Answer            AnswerValue        `json:"answer"`
	CodingTestResults []CodingTestResult `json:"codingTestResults,omitempty"`
}
