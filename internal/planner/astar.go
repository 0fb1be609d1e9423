// Package planner implements the two-phase anytime A* path search over an
// occupancy grid (C5), grounded on the reference astar function in
// lunabot-ai2's teleop/navigate.rs.
package planner

import (
	"container/heap"
	"context"
	"math"
	"time"

	"lunabot/internal/occupancy"
)

// Cell is an integer grid coordinate.
type Cell struct{ X, Y int }

// Budget bounds one search call: the planner yields and checks for
// cancellation every Expansions node pops, or after Wall wall-clock time,
// whichever comes first (§5), mirroring tokio::task::yield_now() in the
// reference astar.
type Budget struct {
	Expansions int
	Wall       time.Duration
}

// DefaultBudget matches §5's default yield cadence.
var DefaultBudget = Budget{Expansions: 1000, Wall: 16 * time.Millisecond}

const (
	orthogonalCost = 10
	diagonalCost   = 14
)

var neighbors8 = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// Result is the outcome of one A* search: a path of cells from start
// (inclusive) to the reached cell (inclusive), its integer cost, and
// whether the goal itself was reached.
type Result struct {
	Path       []Cell
	Cost       int
	ReachedEnd bool
}

// traversable decides whether a cell may be entered during a search.
type traversable func(occupancy.Cell) bool

func notOccupied(c occupancy.Cell) bool { return c != occupancy.Occupied }
func onlyFree(c occupancy.Cell) bool    { return c == occupancy.Free }

// heuristic is the admissible integer-sqrt estimate used by both phases,
// ported from navigate.rs: fast_integer_sqrt(dx.abs_diff(0) + dy.abs_diff(0))
// — no squaring, no cost scaling.
func heuristic(a, b Cell) int {
	dx, dy := absInt(a.X-b.X), absInt(a.Y-b.Y)
	return fastIntegerSqrt(dx + dy)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// fastIntegerSqrt computes floor(sqrt(n)) via Newton iteration, ported
// from navigate.rs's fast_integer_sqrt.
func fastIntegerSqrt(n int) int {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// search implements one phase of the two-phase planner: a standard
// grid A* from start to end, where isSafe gates which cells may be
// entered and the search succeeds when it pops end itself.
// It yields to ctx cancellation every budget.Expansions pops or every
// budget.Wall elapsed, returning the best-so-far partial path if
// cancelled or if the open set is exhausted without success (§4.5).
func search(ctx context.Context, view occupancy.GridView, start, end Cell, isSafe traversable, budget Budget) Result {
	if budget.Expansions <= 0 {
		budget.Expansions = DefaultBudget.Expansions
	}
	if budget.Wall <= 0 {
		budget.Wall = DefaultBudget.Wall
	}

	startIdx := cellIndex(view, start)
	nodes := map[int]*node{startIdx: {cell: start, cost: 0, parent: noParent}}
	open := &openHeap{}
	heap.Init(open)
	heap.Push(open, &heapEntry{idx: startIdx, estimated: heuristic(start, end), cost: 0, seq: 0})

	best := startIdx
	bestHeuristic := heuristic(start, end)

	expansions := 0
	deadline := time.Now().Add(budget.Wall)
	seq := 1

	for open.Len() > 0 {
		select {
		case <-ctx.Done():
			return reconstruct(nodes, best, false)
		default:
		}

		entry := heap.Pop(open).(*heapEntry)
		cur := nodes[entry.idx]
		if cur == nil || entry.cost != cur.cost {
			continue // stale heap entry for a node since improved
		}

		if cur.cell == end {
			return reconstruct(nodes, entry.idx, true)
		}

		h := heuristic(cur.cell, end)
		if h < bestHeuristic {
			bestHeuristic = h
			best = entry.idx
		}

		expansions++
		if expansions >= budget.Expansions || time.Now().After(deadline) {
			expansions = 0
			deadline = time.Now().Add(budget.Wall)
			select {
			case <-ctx.Done():
				return reconstruct(nodes, best, false)
			default:
			}
		}

		for i, d := range neighbors8 {
			nx, ny := cur.cell.X+d[0], cur.cell.Y+d[1]
			next := Cell{nx, ny}
			if !view.InBounds(nx, ny) {
				continue
			}
			if !isSafe(view.At(nx, ny)) {
				continue
			}
			stepCost := orthogonalCost
			if i >= 4 {
				stepCost = diagonalCost
			}
			newCost := cur.cost + stepCost
			nIdx := cellIndex(view, next)
			if existing, ok := nodes[nIdx]; ok && existing.cost <= newCost {
				continue // tie-break: only overwrite if strictly better
			}
			nodes[nIdx] = &node{cell: next, parent: entry.idx, cost: newCost}
			heap.Push(open, &heapEntry{idx: nIdx, estimated: newCost + heuristic(next, end), cost: newCost, seq: seq})
			seq++
		}
	}

	return reconstruct(nodes, best, false)
}

func cellIndex(view occupancy.GridView, c Cell) int { return c.Y*view.Width + c.X }

// noParent marks the start node, which has no predecessor in the chain.
const noParent = -1

type node struct {
	cell   Cell
	parent int
	cost   int
}

// reconstruct walks the parent chain from endIdx back to the start node
// by chasing compact indices (§4.5), the Go analogue of the reference
// IndexMap-based parent chase.
func reconstruct(nodes map[int]*node, endIdx int, reached bool) Result {
	cur, ok := nodes[endIdx]
	if !ok {
		return Result{ReachedEnd: reached}
	}
	cost := cur.cost
	var path []Cell
	for idx := endIdx; ; {
		n := nodes[idx]
		path = append(path, n.cell)
		if n.parent == noParent {
			break
		}
		idx = n.parent
	}
	reversePath(path)
	return Result{Path: path, Cost: cost, ReachedEnd: reached}
}

func reversePath(path []Cell) {
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
}

// heapEntry is one entry of the open set's binary heap.
type heapEntry struct {
	idx       int
	estimated int
	cost      int
	seq       int // insertion order, for tie-break stability
}

// openHeap is a min-heap keyed by (estimated cost, realized cost), with
// equal-estimated-cost nodes popping in insertion order (§4.5 tie-break).
type openHeap []*heapEntry

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	if h[i].estimated != h[j].estimated {
		return h[i].estimated < h[j].estimated
	}
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].seq < h[j].seq
}
func (h openHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *openHeap) Push(x any)   { *h = append(*h, x.(*heapEntry)) }
func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Plan runs the two-phase anytime search described in §4.5: Phase 1 avoids
// only OCCUPIED cells (FREE and UNKNOWN both traversable) from start to
// goal; Phase 2, run only if Phase 1 did not finish on a known-traversable
// (FREE) cell, continues from the end of Phase 1's path treating only FREE
// as traversable.
func Plan(ctx context.Context, view occupancy.GridView, start, goal Cell, budget Budget) Result {
	phase1 := search(ctx, view, start, goal, notOccupied, budget)

	finishedKnown := len(phase1.Path) > 0 && view.At(phase1.Path[len(phase1.Path)-1].X, phase1.Path[len(phase1.Path)-1].Y) == occupancy.Free
	if phase1.ReachedEnd || finishedKnown {
		return phase1
	}

	phase2Start := start
	if len(phase1.Path) > 0 {
		phase2Start = phase1.Path[len(phase1.Path)-1]
	}
	phase2 := search(ctx, view, phase2Start, goal, onlyFree, budget)

	// phase2's path starts at phase2Start, which is already the last cell
	// of phase1's path when phase1 made any progress; drop the duplicate.
	tail := phase2.Path
	if len(phase1.Path) > 0 && len(tail) > 0 {
		tail = tail[1:]
	}
	combined := append(append([]Cell{}, phase1.Path...), tail...)
	return Result{Path: combined, Cost: phase1.Cost + phase2.Cost, ReachedEnd: phase2.ReachedEnd}
}

// ApproxSqrtForTest exposes fastIntegerSqrt for admissibility checks in
// tests without widening the package's public surface unnecessarily.
func ApproxSqrtForTest(n int) int { return fastIntegerSqrt(n) }
