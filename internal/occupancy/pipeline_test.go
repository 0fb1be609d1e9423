package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() PipelineConfig {
	return PipelineConfig{
		GroundPlaneZ:     0,
		MaxSafeGradient:  1,
		FeatureSizeCells: 1,
		MinFeatureCount:  2,
		RadiusInCells:    1,
	}
}

func cloudWithObstacle(w, h int, cellSize float64, ox, oy int) PointCloud {
	cloud := make(PointCloud, w*h)
	x := float64(ox)*cellSize + cellSize/2
	y := float64(oy)*cellSize + cellSize/2
	cloud[0] = Point4{X: float32(x), Y: float32(y), Z: 10, Valid: true}
	return cloud
}

func TestPipeline_Rasterize_MarksOccupiedAboveGroundPlane(t *testing.T) {
	g := NewGrid(10, 10, 0.1)
	cloud := cloudWithObstacle(10, 10, 0.1, 5, 5)
	p := NewPipeline(defaultConfig())
	p.rasterize(cloud, g)
	assert.Equal(t, Occupied, g.at(g.Raw, 5, 5))
}

// P6: density filter is idempotent.
func TestPipeline_DensityFilter_Idempotent(t *testing.T) {
	g := NewGrid(6, 6, 0.1)
	for y := 2; y <= 4; y++ {
		for x := 2; x <= 4; x++ {
			g.Raw[g.index(x, y)] = Occupied
		}
	}
	g.Raw[g.index(0, 0)] = Occupied // isolated noise blip

	cfg := defaultConfig()
	p := NewPipeline(cfg)
	p.densityFilter(g)
	once := append([]Cell(nil), g.Filtered...)

	// Run the filter again over the same Raw input.
	p.densityFilter(g)
	twice := g.Filtered

	require.Equal(t, once, twice)
	// the isolated blip has too few OCCUPIED neighbors to survive.
	assert.Equal(t, Free, g.at(g.Filtered, 0, 0))
	// the dense cluster's center keeps its OCCUPIED state.
	assert.Equal(t, Occupied, g.at(g.Filtered, 3, 3))
}

// P7: expanding by r1 then r2 equals expanding once by r1+r2.
func TestPipeline_Expand_Monotonic(t *testing.T) {
	base := func() *Grid {
		g := NewGrid(20, 20, 0.1)
		g.Filtered[g.index(10, 10)] = Occupied
		return g
	}

	twoStep := base()
	ExpandBy(twoStep, 2)
	ExpandBy(twoStep, 3)

	oneStep := base()
	ExpandBy(oneStep, 5)

	assert.Equal(t, oneStep.Filtered, twoStep.Filtered)
}

func TestPipeline_Expand_UnknownAndFreePassThrough(t *testing.T) {
	g := NewGrid(5, 5, 0.1)
	g.Filtered[g.index(2, 2)] = Free
	p := NewPipeline(defaultConfig())
	p.expand(g)
	assert.Equal(t, Free, g.at(g.Expanded, 2, 2))
	assert.Equal(t, Unknown, g.at(g.Expanded, 0, 0))
}
