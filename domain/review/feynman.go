package review

import (
	"strings"
	"unicode/utf8"

	"mindo/pkg/errors"
)

// CheckExplanation is the gate in front of manual mastery: the learner must
// explain the concept in at least minLength characters.
func CheckExplanation(explanation string, minLength int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(explanation))
	if n < minLength {
		return errors.NewValidationError("explanation is too short").
			WithDetail("min_length", minLength).
			WithDetail("length", n)
	}
	return nil
}
