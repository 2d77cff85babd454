package model

import "time"

type ConstraintType string

const (
	ConstraintSNET ConstraintType = "SNET"
	ConstraintFNLT ConstraintType = "FNLT"
	ConstraintMSO  ConstraintType = "MSO"
	ConstraintMFO  ConstraintType = "MFO"
	ConstraintASAP ConstraintType = "ASAP"
)

// IsValid returns true if the type is a known value.
func (t ConstraintType) IsValid() bool {
	switch t {
	case ConstraintSNET, ConstraintFNLT, ConstraintMSO, ConstraintMFO, ConstraintASAP:
		return true
	}
	return false
}

// Constraint pins a task's dates. A task has at most one.
type Constraint struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	ProjectID string         `json:"project_id"`
	Type      ConstraintType `json:"type"`
	Date      Date           `json:"date"`
	Reduced   bool           `json:"reduced"`
	CreatedAt time.Time      `json:"created_at"`
}
