package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/programme/internal/model"
)

func span(start, end string) model.Span {
	return model.Span{Start: d(start), End: d(end)}
}

func TestPropagate(t *testing.T) {
	pred := span("2024-06-03", "2024-06-10")

	tests := []struct {
		name  string
		typ   model.DependencyType
		succ  model.Span
		want  string
		moved bool
	}{
		{"FS moves start to predecessor end", model.DependencyFS, span("2024-06-05", "2024-06-08"), "2024-06-10..2024-06-13", true},
		{"FS satisfied", model.DependencyFS, span("2024-06-11", "2024-06-12"), "2024-06-11..2024-06-12", false},
		{"SS moves start to predecessor start", model.DependencySS, span("2024-06-01", "2024-06-02"), "2024-06-03..2024-06-04", true},
		{"SS satisfied", model.DependencySS, span("2024-06-04", "2024-06-05"), "2024-06-04..2024-06-05", false},
		{"FF moves end to predecessor end", model.DependencyFF, span("2024-06-01", "2024-06-05"), "2024-06-06..2024-06-10", true},
		{"FF satisfied", model.DependencyFF, span("2024-06-01", "2024-06-12"), "2024-06-01..2024-06-12", false},
		{"SF moves end to predecessor start", model.DependencySF, span("2024-05-20", "2024-05-25"), "2024-05-29..2024-06-03", true},
		{"SF satisfied", model.DependencySF, span("2024-06-01", "2024-06-04"), "2024-06-01..2024-06-04", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, moved := Propagate(tt.typ, pred, tt.succ)
			assert.Equal(t, tt.moved, moved)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.succ.Days(), got.Days(), "duration must be preserved")
		})
	}
}

func TestWouldCycle(t *testing.T) {
	edges := func(pairs ...string) []model.Dependency {
		var out []model.Dependency
		for i := 0; i+1 < len(pairs); i += 2 {
			out = append(out, model.Dependency{PredecessorID: pairs[i], SuccessorID: pairs[i+1]})
		}
		return out
	}

	tests := []struct {
		name  string
		list  []model.Dependency
		pred  string
		succ  string
		cycle bool
	}{
		{"empty graph", nil, "a", "b", false},
		{"direct back edge", edges("a", "b"), "b", "a", true},
		{"long back edge", edges("a", "b", "b", "c", "c", "d"), "d", "a", true},
		{"diamond is fine", edges("a", "b", "a", "c", "b", "d"), "c", "d", false},
		{"parallel chain", edges("a", "b", "c", "d"), "b", "c", false},
		{"closing via branch", edges("a", "b", "b", "c", "b", "d"), "d", "a", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WouldCycle(tt.list, tt.pred, tt.succ)
			require.NoError(t, err)
			assert.Equal(t, tt.cycle, got)
		})
	}
}

func TestArrow(t *testing.T) {
	from := Rect{X: 10, Y: 0, Width: 30, Height: 10}
	to := Rect{X: 50, Y: 20, Width: 20, Height: 10}

	tests := []struct {
		typ  model.DependencyType
		want ArrowPath
	}{
		{model.DependencyFS, ArrowPath{StartX: 40, StartY: 5, EndX: 50, EndY: 25}},
		{model.DependencySS, ArrowPath{StartX: 10, StartY: 5, EndX: 50, EndY: 25}},
		{model.DependencyFF, ArrowPath{StartX: 40, StartY: 5, EndX: 70, EndY: 25}},
		{model.DependencySF, ArrowPath{StartX: 10, StartY: 5, EndX: 70, EndY: 25}},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, Arrow(tt.typ, from, to))
		})
	}
}
