package occupancy

// RasterizeStage, FilterStage, and ExpandStage are small per-stage
// contracts, grounded on banshee-data-velocity.report's layered lidar
// pipeline (ForegroundStage / PerceptionStage / TrackingStage /
// ObjectStage), generalized to the three occupancy stages of §4.4.
type RasterizeStage interface {
	Rasterize(cloud PointCloud, g *Grid)
}

type FilterStage interface {
	Filter(g *Grid)
}

type ExpandStage interface {
	Expand(g *Grid)
}

// PipelineConfig configures the three occupancy stages, modeled on
// banshee's TrackingPipelineConfig dependency-injection style.
type PipelineConfig struct {
	// GroundPlaneZ is the world-frame z coordinate of the ground.
	GroundPlaneZ float64
	// MaxSafeGradient scales CellSize to decide the OCCUPIED height
	// threshold above the ground plane.
	MaxSafeGradient float64
	// FeatureSizeCells is F in the (2F+1)x(2F+1) density-filter window.
	FeatureSizeCells int
	// MinFeatureCount is the minimum OCCUPIED cells inside the window for
	// a cell to remain OCCUPIED.
	MinFeatureCount int
	// RadiusInCells is the Chebyshev expansion radius.
	RadiusInCells int
}

// Pipeline drives the three occupancy stages in sequence over one grid.
type Pipeline struct {
	cfg PipelineConfig
}

// NewPipeline constructs a Pipeline with the given stage configuration.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run rasterizes cloud into g.Raw, density-filters into g.Filtered, and
// radius-expands into g.Expanded. Each stage is out-of-place, reading the
// previous stage's output and writing the next (§4.4); there is no
// temporal decay, callers must Reset the grid explicitly between cycles
// if desired.
func (p *Pipeline) Run(cloud PointCloud, g *Grid) {
	p.rasterize(cloud, g)
	p.densityFilter(g)
	p.expand(g)
}

// rasterize implements Stage A: points above the safe-gradient threshold
// mark OCCUPIED (sticky, never regresses within one cycle); other in-
// bounds valid points mark FREE only where the cell is still UNKNOWN.
func (p *Pipeline) rasterize(cloud PointCloud, g *Grid) {
	threshold := p.cfg.GroundPlaneZ + p.cfg.MaxSafeGradient*g.CellSize
	for _, pt := range cloud {
		if !pt.Valid {
			continue
		}
		x, y := worldToCell(float64(pt.X), float64(pt.Y), g.CellSize)
		if !g.InBounds(x, y) {
			continue
		}
		idx := g.index(x, y)
		if float64(pt.Z) > threshold {
			g.Raw[idx] = Occupied
			continue
		}
		if g.Raw[idx] == Unknown {
			g.Raw[idx] = Free
		}
	}
}

// densityFilter implements Stage B: a cell stays OCCUPIED only if its
// (2F+1)x(2F+1) window contains at least MinFeatureCount OCCUPIED cells,
// otherwise it reverts to FREE. Idempotent by construction (P6): it reads
// only Raw and overwrites Filtered, so running it again with an unchanged
// Raw input recomputes the identical window counts.
func (p *Pipeline) densityFilter(g *Grid) {
	f := p.cfg.FeatureSizeCells
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			idx := g.index(x, y)
			cell := g.Raw[idx]
			if cell != Occupied {
				g.Filtered[idx] = cell
				continue
			}
			count := 0
			for dy := -f; dy <= f; dy++ {
				for dx := -f; dx <= f; dx++ {
					nx, ny := x+dx, y+dy
					if !g.InBounds(nx, ny) {
						continue
					}
					if g.Raw[g.index(nx, ny)] == Occupied {
						count++
					}
				}
			}
			if count >= p.cfg.MinFeatureCount {
				g.Filtered[idx] = Occupied
			} else {
				g.Filtered[idx] = Free
			}
		}
	}
}

// expand implements Stage C: every OCCUPIED cell marks all cells within
// Chebyshev distance RadiusInCells as OCCUPIED in the output; UNKNOWN and
// FREE cells pass through untouched unless touched by an expansion.
// Expanding twice with r1 then r2 yields the same OCCUPIED set as
// expanding once with r1+r2 (P7), since Chebyshev-ball expansion by r1
// followed by r2 is itself a Chebyshev ball of radius r1+r2 around the
// original OCCUPIED set.
func (p *Pipeline) expand(g *Grid) {
	copy(g.Expanded, g.Filtered)
	r := p.cfg.RadiusInCells
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Filtered[g.index(x, y)] != Occupied {
				continue
			}
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					nx, ny := x+dx, y+dy
					if !g.InBounds(nx, ny) {
						continue
					}
					g.Expanded[g.index(nx, ny)] = Occupied
				}
			}
		}
	}
}

func worldToCell(x, y, cellSize float64) (int, int) {
	return int(x / cellSize), int(y / cellSize)
}

// ExpandBy applies the Chebyshev expansion to an arbitrary OCCUPIED set
// represented as a grid, used directly by the P7 monotonicity test to
// expand by r1, then by r2, and compare against expanding by
// r1+r2 from the same starting set.
func ExpandBy(g *Grid, radius int) {
	out := make([]Cell, len(g.Filtered))
	copy(out, g.Filtered)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Filtered[g.index(x, y)] != Occupied {
				continue
			}
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if !g.InBounds(nx, ny) {
						continue
					}
					out[g.index(nx, ny)] = Occupied
				}
			}
		}
	}
	copy(g.Filtered, out)
}
