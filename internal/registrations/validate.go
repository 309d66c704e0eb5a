package registrations

import (
	"strings"

	"github.com/aura-webinar/portal/internal/apperror"
	"github.com/aura-webinar/portal/internal/models"
)

const (
	msgRequired      = "This question is required."
	msgSelectOne     = "Please select at least one option."
	msgUnknownOption = "Please choose one of the listed options."
	msgSingleValue   = "Please give a single answer."
)

// ValidateAnswers checks answers against a webinar's questions and returns a *ValidationError
// keyed by question key, or nil. It never calls the API.
func ValidateAnswers(questions []models.Question, answers models.Answers) error {
	fields := make(map[string]string)
	for _, q := range questions {
		key := q.Key()
		a, ok := answers[key]
		if !ok || a.IsEmpty() {
			if q.IsRequired() {
				if q.IsMulti() {
					fields[key] = msgSelectOne
				} else {
					fields[key] = msgRequired
				}
			}
			continue
		}
		if a.Multi && !q.IsMulti() {
			fields[key] = msgSingleValue
			continue
		}
		if q.IsChoice() && len(q.Options) > 0 {
			for _, v := range values(a) {
				if !q.HasOption(v) {
					fields[key] = msgUnknownOption
					break
				}
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &apperror.ValidationError{Fields: fields}
}

// NormalizeAnswers trims text answers, drops blank choices and keeps only answers to known questions.
// A list sent for a single-value question collapses to its only entry; a longer list stays a list
// so validation rejects it.
func NormalizeAnswers(questions []models.Question, answers models.Answers) models.Answers {
	out := make(models.Answers, len(questions))
	for _, q := range questions {
		a, ok := answers[q.Key()]
		if !ok {
			continue
		}
		if q.IsMulti() || a.Multi {
			choices := make([]string, 0, len(a.Choices)+1)
			for _, c := range values(a) {
				if c = strings.TrimSpace(c); c != "" {
					choices = append(choices, c)
				}
			}
			switch {
			case q.IsMulti() || len(choices) > 1:
				out[q.Key()] = models.ChoicesAnswer(choices...)
			case len(choices) == 1:
				out[q.Key()] = models.TextAnswer(choices[0])
			default:
				out[q.Key()] = models.TextAnswer("")
			}
			continue
		}
		out[q.Key()] = models.TextAnswer(strings.TrimSpace(a.Text))
	}
	return out
}

func values(a models.Answer) []string {
	if a.Multi {
		return a.Choices
	}
	if a.Text == "" {
		return nil
	}
	return []string{a.Text}
}
