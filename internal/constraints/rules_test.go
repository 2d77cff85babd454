package constraints

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baiirun/programme/internal/model"
)

func TestCheck(t *testing.T) {
	span := model.Span{Start: d("2024-07-03"), End: d("2024-07-05")}

	tests := []struct {
		name      string
		typ       model.ConstraintType
		date      string
		valid     bool
		suggested string
	}{
		{"SNET satisfied", model.ConstraintSNET, "2024-07-03", true, ""},
		{"SNET violated", model.ConstraintSNET, "2024-07-04", false, "2024-07-04..2024-07-06"},
		{"FNLT satisfied", model.ConstraintFNLT, "2024-07-05", true, ""},
		{"FNLT violated", model.ConstraintFNLT, "2024-07-04", false, "2024-07-02..2024-07-04"},
		{"MSO satisfied", model.ConstraintMSO, "2024-07-03", true, ""},
		{"MSO violated", model.ConstraintMSO, "2024-07-01", false, "2024-07-01..2024-07-03"},
		{"MFO satisfied", model.ConstraintMFO, "2024-07-05", true, ""},
		{"MFO violated", model.ConstraintMFO, "2024-07-09", false, "2024-07-07..2024-07-09"},
		{"ASAP never violated", model.ConstraintASAP, "2020-01-01", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := model.Constraint{Type: tt.typ, Date: d(tt.date)}
			got := Check(c, span, false)
			assert.Equal(t, tt.valid, got.IsValid)
			if tt.valid {
				assert.Empty(t, got.Violations)
				assert.Nil(t, got.SuggestedStart)
				return
			}
			fixed := model.Span{Start: *got.SuggestedStart, End: *got.SuggestedEnd}
			assert.Equal(t, tt.suggested, fixed.String())
			assert.Equal(t, span.Days(), fixed.Days())
		})
	}
}
