package model

import "time"

// DependencyType is the relationship kind between predecessor and successor.
type DependencyType string

const (
	DependencyFS DependencyType = "FS" // finish-to-start
	DependencySS DependencyType = "SS" // start-to-start
	DependencyFF DependencyType = "FF" // finish-to-finish
	DependencySF DependencyType = "SF" // start-to-finish
)

// IsValid returns true if the type is a known value.
func (t DependencyType) IsValid() bool {
	switch t {
	case DependencyFS, DependencySS, DependencyFF, DependencySF:
		return true
	}
	return false
}

// Dependency is a directed edge PredecessorID -> SuccessorID.
type Dependency struct {
	ID            string         `json:"id"`
	PredecessorID string         `json:"predecessor_id"`
	SuccessorID   string         `json:"successor_id"`
	Type          DependencyType `json:"type"`
	ProjectID     string         `json:"project_id"`
	Reduced       bool           `json:"reduced"`
	CreatedAt     time.Time      `json:"created_at"`
}
