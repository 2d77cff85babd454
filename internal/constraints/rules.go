package constraints

import (
	"fmt"

	"github.com/baiirun/programme/internal/model"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one broken constraint rule.
type Violation struct {
	Type     model.ConstraintType `json:"type"`
	Severity Severity             `json:"severity"`
	Message  string               `json:"message"`
}

// Validation is the outcome of checking dates against a constraint.
// SuggestedStart and SuggestedEnd are set when there is a violation.
type Validation struct {
	IsValid        bool        `json:"is_valid"`
	Violations     []Violation `json:"violations,omitempty"`
	SuggestedStart *model.Date `json:"suggested_start,omitempty"`
	SuggestedEnd   *model.Date `json:"suggested_end,omitempty"`
}

// Check tests span against c. In reduced mode violations are warnings and
// do not make the result invalid.
func Check(c model.Constraint, span model.Span, reduced bool) Validation {
	msg, violated := violation(c, span)
	if !violated {
		return Validation{IsValid: true}
	}
	severity := SeverityError
	if reduced {
		severity = SeverityWarning
	}
	fixed, _ := Suggest(c, span)
	return Validation{
		IsValid:        reduced,
		Violations:     []Violation{{Type: c.Type, Severity: severity, Message: msg}},
		SuggestedStart: &fixed.Start,
		SuggestedEnd:   &fixed.End,
	}
}

func violation(c model.Constraint, span model.Span) (string, bool) {
	switch c.Type {
	case model.ConstraintSNET:
		if span.Start.Before(c.Date) {
			return fmt.Sprintf("starts %s, before %s", span.Start, c.Date), true
		}
	case model.ConstraintFNLT:
		if span.End.After(c.Date) {
			return fmt.Sprintf("finishes %s, after %s", span.End, c.Date), true
		}
	case model.ConstraintMSO:
		if !span.Start.Equal(c.Date) {
			return fmt.Sprintf("starts %s, must start on %s", span.Start, c.Date), true
		}
	case model.ConstraintMFO:
		if !span.End.Equal(c.Date) {
			return fmt.Sprintf("finishes %s, must finish on %s", span.End, c.Date), true
		}
	}
	return "", false
}

// Suggest returns span moved to satisfy c with its duration kept, anchored
// at the constraint date. It reports false when span already complies.
func Suggest(c model.Constraint, span model.Span) (model.Span, bool) {
	if _, violated := violation(c, span); !violated {
		return span, false
	}
	switch c.Type {
	case model.ConstraintSNET, model.ConstraintMSO:
		return span.StartingAt(c.Date), true
	case model.ConstraintFNLT, model.ConstraintMFO:
		return span.EndingAt(c.Date), true
	}
	return span, false
}
