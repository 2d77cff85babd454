package model

import (
	"strings"

	"github.com/google/uuid"
)

// IDPrefix tags generated ids with the record they identify.
type IDPrefix string

const (
	PrefixTask       IDPrefix = "tk"
	PrefixDependency IDPrefix = "dp"
	PrefixConstraint IDPrefix = "cn"
	PrefixCalendar   IDPrefix = "cal"
	PrefixAction     IDPrefix = "act"
)

// GenerateID creates an id of the form prefix-xxxxxxxxxxxx (12 hex chars).
func GenerateID(prefix IDPrefix) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return string(prefix) + "-" + hex[:12]
}
