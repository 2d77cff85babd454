package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		prefix IDPrefix
		want   string
	}{
		{PrefixTask, "tk-"},
		{PrefixDependency, "dp-"},
		{PrefixConstraint, "cn-"},
		{PrefixCalendar, "cal-"},
		{PrefixAction, "act-"},
	}

	for _, tt := range tests {
		t.Run(string(tt.prefix), func(t *testing.T) {
			id := GenerateID(tt.prefix)

			if !strings.HasPrefix(id, tt.want) {
				t.Errorf("expected prefix %q, got %q", tt.want, id)
			}
			if len(id) != len(tt.want)+12 {
				t.Errorf("expected length %d, got %d (%q)", len(tt.want)+12, len(id), id)
			}
		})
	}
}

func TestGenerateID_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateID(PrefixTask)
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestTaskKind_IsValid(t *testing.T) {
	tests := []struct {
		kind  TaskKind
		valid bool
	}{
		{TaskKindTask, true},
		{TaskKindMilestone, true},
		{TaskKindPhase, true},
		{TaskKindSummary, true},
		{TaskKind(""), false},
		{TaskKind("epic"), false},
		{TaskKind("Task"), false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestDependencyType_IsValid(t *testing.T) {
	for _, typ := range []DependencyType{DependencyFS, DependencySS, DependencyFF, DependencySF} {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	for _, typ := range []DependencyType{"", "fs", "SX"} {
		if typ.IsValid() {
			t.Errorf("%q should be invalid", typ)
		}
	}
}

func TestConstraintType_IsValid(t *testing.T) {
	for _, typ := range []ConstraintType{ConstraintSNET, ConstraintFNLT, ConstraintMSO, ConstraintMFO, ConstraintASAP} {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if ConstraintType("ALAP").IsValid() {
		t.Error("ALAP should be invalid")
	}
}

func TestDate_Arithmetic(t *testing.T) {
	d := MustParseDate("2024-06-07")

	next := d.AddDays(3)
	if next.String() != "2024-06-10" {
		t.Errorf("AddDays(3) = %s, want 2024-06-10", next)
	}
	// the receiver is never modified
	if d.String() != "2024-06-07" {
		t.Errorf("receiver changed to %s", d)
	}
	if got := d.DaysUntil(next); got != 3 {
		t.Errorf("DaysUntil = %d, want 3", got)
	}
	if got := next.DaysUntil(d); got != -3 {
		t.Errorf("DaysUntil = %d, want -3", got)
	}
	if d.Weekday() != time.Friday {
		t.Errorf("weekday = %s, want Friday", d.Weekday())
	}
}

func TestDate_DaysUntilAcrossDST(t *testing.T) {
	a := MustParseDate("2024-03-30")
	b := MustParseDate("2024-04-02")
	if got := a.DaysUntil(b); got != 3 {
		t.Errorf("DaysUntil = %d, want 3", got)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024-13-01", "06/07/2024", "2024-06-07T00:00:00Z"} {
		if _, err := ParseDate(s); err == nil {
			t.Errorf("ParseDate(%q) expected error", s)
		}
	}
}

func TestDate_JSON(t *testing.T) {
	task := Task{ID: "tk-1", StartDate: MustParseDate("2024-01-01"), EndDate: MustParseDate("2024-01-10")}
	b, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"start_date":"2024-01-01"`) {
		t.Errorf("unexpected JSON: %s", b)
	}

	var got Task
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.StartDate != task.StartDate || got.EndDate != task.EndDate {
		t.Errorf("dates = %s..%s, want %s..%s", got.StartDate, got.EndDate, task.StartDate, task.EndDate)
	}
}

func TestSpan_AnchoredMoves(t *testing.T) {
	s := Span{Start: MustParseDate("2024-06-05"), End: MustParseDate("2024-06-08")}

	if got := s.StartingAt(MustParseDate("2024-06-10")); got.String() != "2024-06-10..2024-06-13" {
		t.Errorf("StartingAt = %s", got)
	}
	if got := s.EndingAt(MustParseDate("2024-06-10")); got.String() != "2024-06-07..2024-06-10" {
		t.Errorf("EndingAt = %s", got)
	}
	if got := s.Shift(-1); got.Days() != 3 {
		t.Errorf("Shift changed duration to %d", got.Days())
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"site", "", "concrete", "site"})
	if strings.Join(got, ",") != "concrete,site" {
		t.Errorf("NormalizeTags = %v", got)
	}
	if NormalizeTags([]string{""}) != nil {
		t.Error("expected nil for blank-only tags")
	}
}

func TestTask_Clone(t *testing.T) {
	parent := "tk-parent"
	orig := Task{ID: "tk-1", ParentID: &parent, Tags: []string{"a"}}
	c := orig.Clone()
	*c.ParentID = "other"
	c.Tags[0] = "b"
	if *orig.ParentID != "tk-parent" || orig.Tags[0] != "a" {
		t.Error("clone shares memory with original")
	}
}
