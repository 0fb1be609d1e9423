package occupancy

import "sync"

// Point4 is one element of a PointCloud: a world-frame point plus validity.
type Point4 struct {
	X, Y, Z float32
	Valid   bool
}

// PointCloud is a dense, row-major array of Point4, one per depth pixel.
type PointCloud []Point4

// Mat4 is a row-major 4x4 transform, camera-to-world.
type Mat4 [16]float32

// Intrinsics holds the pinhole camera parameters used to unproject a pixel.
type Intrinsics struct {
	Width, Height int
	FX, FY        float32
	CX, CY        float32
	// Scale converts a raw depth unit to meters.
	Scale float32
	// MaxDepth is the maximum valid depth in meters.
	MaxDepth float32
}

// ProjectorConfig configures the worker-pool projection kernel, grounded on
// ariadne's PipelineConfig worker-count fields (generalized from per-stage
// crawl workers to a single row-sharded pool).
type ProjectorConfig struct {
	// Workers is the number of goroutines sharing the per-row projection
	// work. Zero selects a single worker (no parallelism).
	Workers int
}

// Projector turns a raw depth image into a world-frame point cloud.
type Projector struct {
	intr   Intrinsics
	cfg    ProjectorConfig
	camera Mat4
}

// NewProjector constructs a Projector for the given intrinsics, worker
// config, and camera-to-world transform.
func NewProjector(intr Intrinsics, cfg ProjectorConfig, cameraToWorld Mat4) *Projector {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Projector{intr: intr, cfg: cfg, camera: cameraToWorld}
}

// Project converts depth (16-bit units, row-major, length Width*Height)
// into a point cloud of the same length, preserving output order and
// alignment (§4.3). Work is sharded by row across cfg.Workers goroutines;
// there is no cross-goroutine ordering dependency since each goroutine
// owns a disjoint row range of the pre-sized output slice.
func (p *Projector) Project(depth []uint16) PointCloud {
	w, h := p.intr.Width, p.intr.Height
	cloud := make(PointCloud, w*h)

	workers := p.cfg.Workers
	if workers > h {
		workers = h
	}
	rowsPerWorker := (h + workers - 1) / workers

	var wg sync.WaitGroup
	for startRow := 0; startRow < h; startRow += rowsPerWorker {
		endRow := startRow + rowsPerWorker
		if endRow > h {
			endRow = h
		}
		wg.Add(1)
		go func(startRow, endRow int) {
			defer wg.Done()
			p.projectRows(depth, cloud, startRow, endRow)
		}(startRow, endRow)
	}
	wg.Wait()
	return cloud
}

func (p *Projector) projectRows(depth []uint16, cloud PointCloud, startRow, endRow int) {
	w := p.intr.Width
	for v := startRow; v < endRow; v++ {
		for u := 0; u < w; u++ {
			idx := v*w + u
			d := depth[idx]
			if d == 0 {
				cloud[idx] = Point4{}
				continue
			}
			depthMeters := float32(d) * p.intr.Scale
			if depthMeters > p.intr.MaxDepth {
				cloud[idx] = Point4{}
				continue
			}
			xc := (float32(u) - p.intr.CX) / p.intr.FX
			yc := (float32(v) - p.intr.CY) / p.intr.FY
			zc := depthMeters
			px, py, pz := xc*zc, yc*zc, zc
			wx, wy, wz := p.camera.transformPoint(px, py, pz)
			cloud[idx] = Point4{X: wx, Y: wy, Z: wz, Valid: true}
		}
	}
}

func (m Mat4) transformPoint(x, y, z float32) (wx, wy, wz float32) {
	wx = m[0]*x + m[1]*y + m[2]*z + m[3]
	wy = m[4]*x + m[5]*y + m[6]*z + m[7]
	wz = m[8]*x + m[9]*y + m[10]*z + m[11]
	return
}
