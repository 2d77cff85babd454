package constraints

import "github.com/baiirun/programme/internal/model"

// TypeInfo is the display metadata of a constraint type.
type TypeInfo struct {
	Type        model.ConstraintType `json:"type"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
}

var typeInfo = []TypeInfo{
	{model.ConstraintSNET, "Start No Earlier Than", "Task cannot start before the specified date."},
	{model.ConstraintFNLT, "Finish No Later Than", "Task must finish on or before the specified date."},
	{model.ConstraintMSO, "Must Start On", "Task must start exactly on the specified date."},
	{model.ConstraintMFO, "Must Finish On", "Task must finish exactly on the specified date."},
	{model.ConstraintASAP, "As Soon As Possible", "Task is scheduled as early as possible, with no date restriction."},
}

// Types returns the metadata of every constraint type.
func Types() []TypeInfo {
	out := make([]TypeInfo, len(typeInfo))
	copy(out, typeInfo)
	return out
}

// Info returns the metadata of one type.
func Info(t model.ConstraintType) (TypeInfo, bool) {
	for _, info := range typeInfo {
		if info.Type == t {
			return info, true
		}
	}
	return TypeInfo{}, false
}
