package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// QuestionType is the input kind of a registration question.
type QuestionType string

const (
	QuestionText     QuestionType = "text"
	QuestionTextarea QuestionType = "textarea"
	QuestionRadio    QuestionType = "radio"
	QuestionCheckbox QuestionType = "checkbox"
	QuestionSelect   QuestionType = "select"
)

// Question is a custom form field an organizer attaches to a webinar's registration flow.
type Question struct {
	ID       string       `json:"id,omitempty"`
	Type     QuestionType `json:"type"`
	Prompt   string       `json:"question"`
	Options  []string     `json:"options,omitempty"`
	Required *bool        `json:"required,omitempty"`
}

// IsRequired is true unless the organizer explicitly marked the question optional.
func (q Question) IsRequired() bool {
	return q.Required == nil || *q.Required
}

// IsMulti reports whether the answer is a set of choices.
func (q Question) IsMulti() bool {
	return q.Type == QuestionCheckbox
}

// IsChoice reports whether the answer must come from Options.
func (q Question) IsChoice() bool {
	switch q.Type {
	case QuestionRadio, QuestionCheckbox, QuestionSelect:
		return true
	}
	return false
}

// Key identifies the question in an Answers map.
func (q Question) Key() string {
	if q.ID != "" {
		return q.ID
	}
	return q.Prompt
}

// HasOption reports whether v is one of the question's choices.
func (q Question) HasOption(v string) bool {
	for _, o := range q.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Answer is a viewer's answer: a single string or a set of strings (checkbox).
type Answer struct {
	Text    string
	Choices []string
	Multi   bool
}

// TextAnswer builds a single-value answer.
func TextAnswer(s string) Answer { return Answer{Text: s} }

// ChoicesAnswer builds a multi-value answer.
func ChoicesAnswer(v ...string) Answer { return Answer{Choices: v, Multi: true} }

// IsEmpty reports whether the answer carries no usable value.
func (a Answer) IsEmpty() bool {
	if a.Multi {
		for _, c := range a.Choices {
			if strings.TrimSpace(c) != "" {
				return false
			}
		}
		return true
	}
	return strings.TrimSpace(a.Text) == ""
}

// MarshalJSON encodes the answer as a JSON string or array.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Multi {
		if a.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Choices)
	}
	return json.Marshal(a.Text)
}

// UnmarshalJSON accepts a JSON string, array of strings, or null.
func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*a = Answer{}
		return nil
	case b[0] == '[':
		var v []string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*a = Answer{Choices: v, Multi: true}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Answer{Text: s}
		return nil
	}
	return errors.New("answer must be a string or an array of strings")
}

// Answers maps question keys to the viewer's answers.
type Answers map[string]Answer
