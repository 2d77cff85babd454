package deps

import (
	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/model"
)

// WouldCycle reports whether adding predecessorID -> successorID to list
// closes a cycle. It walks forward from the successor over the existing
// edges plus the proposed one, keeping a visited set and an on-path set;
// reaching a node that is still on the path is a cycle.
func WouldCycle(list []model.Dependency, predecessorID, successorID string) (bool, error) {
	adj := make(map[string][]string, len(list)+1)
	for _, d := range list {
		adj[d.PredecessorID] = append(adj[d.PredecessorID], d.SuccessorID)
	}
	adj[predecessorID] = append(adj[predecessorID], successorID)

	type frame struct {
		node string
		next int
	}
	visited := map[string]bool{successorID: true}
	onPath := map[string]bool{successorID: true}
	stack := []frame{{node: successorID}}

	for visits := 0; len(stack) > 0; visits++ {
		if visits > MaxVisits {
			return false, apperr.Conflict("deps.cycle", "cycle search exceeded %d steps", MaxVisits)
		}
		top := &stack[len(stack)-1]
		edges := adj[top.node]
		if top.next >= len(edges) {
			onPath[top.node] = false
			stack = stack[:len(stack)-1]
			continue
		}
		next := edges[top.next]
		top.next++
		if onPath[next] {
			return true, nil
		}
		if visited[next] {
			continue
		}
		visited[next] = true
		onPath[next] = true
		stack = append(stack, frame{node: next})
	}
	return false, nil
}

// Propagate applies the dependency rule to the successor span and reports
// whether it moved. The successor keeps its duration; the predecessor is
// never changed.
//
//	FS: successor starts no earlier than the predecessor ends
//	SS: successor starts no earlier than the predecessor starts
//	FF: successor ends no earlier than the predecessor ends
//	SF: successor ends no earlier than the predecessor starts
func Propagate(typ model.DependencyType, pred, succ model.Span) (model.Span, bool) {
	switch typ {
	case model.DependencyFS:
		if succ.Start.Before(pred.End) {
			return succ.StartingAt(pred.End), true
		}
	case model.DependencySS:
		if succ.Start.Before(pred.Start) {
			return succ.StartingAt(pred.Start), true
		}
	case model.DependencyFF:
		if succ.End.Before(pred.End) {
			return succ.EndingAt(pred.End), true
		}
	case model.DependencySF:
		if succ.End.Before(pred.Start) {
			return succ.EndingAt(pred.Start), true
		}
	}
	return succ, false
}

// Rect is a bar's on-screen box.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) left() float64   { return r.X }
func (r Rect) right() float64  { return r.X + r.Width }
func (r Rect) middle() float64 { return r.Y + r.Height/2 }

// ArrowPath is where a dependency arrow starts and ends.
type ArrowPath struct {
	StartX float64 `json:"start_x"`
	StartY float64 `json:"start_y"`
	EndX   float64 `json:"end_x"`
	EndY   float64 `json:"end_y"`
}

// Arrow computes the arrow between the predecessor bar from and the
// successor bar to. FS runs right edge to left edge, SS left to left, FF
// right to right and SF left to right, all at the bars' vertical middles.
func Arrow(typ model.DependencyType, from, to Rect) ArrowPath {
	path := ArrowPath{StartY: from.middle(), EndY: to.middle()}
	switch typ {
	case model.DependencySS:
		path.StartX, path.EndX = from.left(), to.left()
	case model.DependencyFF:
		path.StartX, path.EndX = from.right(), to.right()
	case model.DependencySF:
		path.StartX, path.EndX = from.left(), to.right()
	default:
		path.StartX, path.EndX = from.right(), to.left()
	}
	return path
}
