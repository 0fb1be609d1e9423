package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunabot/internal/occupancy"
)

func freeGrid(w, h int) *occupancy.Grid {
	g := occupancy.NewGrid(w, h, 0.1)
	for i := range g.Filtered {
		g.Filtered[i] = occupancy.Free
		g.Expanded[i] = occupancy.Free
	}
	return g
}

// Scenario 3: straight line across an all-FREE grid.
func TestPlan_StraightLine(t *testing.T) {
	g := freeGrid(128, 128)
	view := g.Snapshot()

	result := Plan(context.Background(), view, Cell{0, 0}, Cell{127, 0}, DefaultBudget)
	require.True(t, result.ReachedEnd)
	require.Len(t, result.Path, 128)

	for i := 1; i < len(result.Path); i++ {
		assert.Greater(t, result.Path[i].X, result.Path[i-1].X, "x must increase monotonically")
	}
	assert.Equal(t, Cell{127, 0}, result.Path[len(result.Path)-1])
}

// Scenario 4: route around an obstacle wall.
func TestPlan_ObstacleWall(t *testing.T) {
	g := freeGrid(128, 128)
	for y := 0; y <= 120; y++ {
		g.Expanded[g.Width*y+64] = occupancy.Occupied
	}
	view := g.Snapshot()

	result := Plan(context.Background(), view, Cell{0, 0}, Cell{127, 0}, DefaultBudget)
	require.True(t, result.ReachedEnd)

	sawGap := false
	for _, c := range result.Path {
		require.NotEqual(t, occupancy.Occupied, view.At(c.X, c.Y), "path must never cross an occupied cell")
		if c.X == 64 && c.Y >= 121 {
			sawGap = true
		}
	}
	assert.True(t, sawGap, "path should route through the gap above y=120")
}

// P5: admissibility of the heuristic on a FREE-only grid (Phase 2).
func TestPlan_Admissibility(t *testing.T) {
	g := freeGrid(32, 32)
	view := g.Snapshot()

	result := search(context.Background(), view, Cell{0, 0}, Cell{10, 10}, onlyFree, DefaultBudget)
	require.True(t, result.ReachedEnd)

	optimal := 10 * diagonalCost // 10 diagonal steps is optimal on a free grid
	assert.Equal(t, optimal, result.Cost)
	assert.GreaterOrEqual(t, result.Cost, heuristic(Cell{0, 0}, Cell{10, 10}))
}

func TestPlan_UnreachableGoalReturnsPartialPath(t *testing.T) {
	g := freeGrid(10, 10)
	for y := 0; y < 10; y++ {
		g.Expanded[g.Width*y+5] = occupancy.Occupied
	}
	for x := 0; x < 10; x++ {
		g.Expanded[g.Width*9+x] = occupancy.Occupied
	}
	view := g.Snapshot()

	result := Plan(context.Background(), view, Cell{0, 0}, Cell{9, 0}, DefaultBudget)
	assert.False(t, result.ReachedEnd)
	assert.NotEmpty(t, result.Path, "a fully walled goal must still return a best-effort partial path")
}

func TestFastIntegerSqrt(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 1, 3: 1, 4: 2, 8: 2, 9: 3, 99: 9, 100: 10}
	for n, want := range cases {
		assert.Equal(t, want, ApproxSqrtForTest(n), "n=%d", n)
	}
}

func TestDecimate_CollapsesCollinearFreeRun(t *testing.T) {
	g := freeGrid(10, 1)
	view := g.Snapshot()
	path := []Cell{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}}
	decimated := Decimate(view, path)
	assert.Equal(t, []Cell{{0, 0}, {4, 0}}, decimated)
}

func TestDecimate_StopsAtObstacle(t *testing.T) {
	g := freeGrid(10, 1)
	g.Expanded[3] = occupancy.Occupied
	view := g.Snapshot()
	path := []Cell{{0, 0}, {1, 0}, {2, 0}, {4, 0}}
	decimated := Decimate(view, path)
	assert.Equal(t, path[0], decimated[0])
	assert.Equal(t, path[len(path)-1], decimated[len(decimated)-1])
}
