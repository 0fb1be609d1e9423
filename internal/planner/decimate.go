package planner

import "lunabot/internal/occupancy"

// Decimate removes collinear interior waypoints from path when every cell
// on the straight line between the kept endpoints is FREE ("line-of-sight"
// smoothing, §4.5, optional post-processing). Grounded on
// pathfinding/src/decimate.rs's gradient line-walk, generalized from a
// gradient-threshold check to an all-cells-FREE check per §4.5.
func Decimate(view occupancy.GridView, path []Cell) []Cell {
	if len(path) <= 2 {
		return path
	}
	out := []Cell{path[0]}
	anchor := 0
	for i := 2; i < len(path); i++ {
		if lineOfSightFree(view, path[anchor], path[i]) {
			continue // path[i-1] is redundant, skip it
		}
		anchor = i - 1
		out = append(out, path[anchor])
	}
	out = append(out, path[len(path)-1])
	return out
}

// lineOfSightFree walks the grid cells on the segment from a to b using a
// Bresenham-style integer walk, reporting whether every intermediate cell
// is FREE.
func lineOfSightFree(view occupancy.GridView, a, b Cell) bool {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 >= x1 {
		sx = -1
	}
	sy := 1
	if y0 >= y1 {
		sy = -1
	}
	err := dx + dy

	x, y := x0, y0
	for {
		if !view.InBounds(x, y) || view.At(x, y) != occupancy.Free {
			if !(x == x0 && y == y0) && !(x == x1 && y == y1) {
				return false
			}
		}
		if x == x1 && y == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
