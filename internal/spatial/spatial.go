// Package spatial holds the rigid-transform and 2D vector math shared by the
// localizer, planner, and behavior core.
package spatial

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec2 is a 2D vector with x right, y forward, matching the occupancy grid's
// cell addressing convention.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Normalize returns v scaled to unit length, or the zero vector if v is zero.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Angle returns the unsigned angle in radians between v and o.
func (v Vec2) Angle(o Vec2) float64 {
	dot := v.X*o.X + v.Y*o.Y
	denom := v.Len() * o.Len()
	if denom == 0 {
		return 0
	}
	cos := dot / denom
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

// RotateCCW rotates v counter-clockwise by theta radians, ported from
// follow_path.rs's rotate_v2_ccw.
func RotateCCW(v Vec2, theta float64) Vec2 {
	c, s := math.Cos(theta), math.Sin(theta)
	return Vec2{
		X: c*v.X - s*v.Y,
		Y: s*v.X + c*v.Y,
	}
}

// Isometry is a rigid SE(3) transform: translation plus a unit rotation
// quaternion. Zero value is NOT identity; use Identity().
type Isometry struct {
	Translation r3.Vec
	Rotation    quat.Number
}

// Identity returns the identity isometry.
func Identity() Isometry {
	return Isometry{Translation: r3.Vec{}, Rotation: quat.Number{Real: 1}}
}

// Finite reports whether every component of the isometry is finite,
// the invariant required by spec for the published robot pose.
func (iso Isometry) Finite() bool {
	vals := []float64{
		iso.Translation.X, iso.Translation.Y, iso.Translation.Z,
		iso.Rotation.Real, iso.Rotation.Imag, iso.Rotation.Jmag, iso.Rotation.Kmag,
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// RotateVector rotates v by the isometry's rotation quaternion.
func (iso Isometry) RotateVector(v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	qInv := quat.Conj(iso.Rotation)
	// normalize in case of accumulated drift
	n := quat.Abs(iso.Rotation)
	if n != 0 {
		qInv = quat.Scale(1/(n*n), qInv)
	}
	r := quat.Mul(quat.Mul(iso.Rotation, p), qInv)
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// AngleTo returns the angle in radians between iso's rotation and o's.
func (iso Isometry) AngleTo(o quat.Number) float64 {
	rel := quat.Mul(quat.Conj(iso.Rotation), o)
	w := rel.Real
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	return 2 * math.Acos(math.Abs(w))
}

// SwingTwist decomposes q into a twist about axis (unit vector) and the
// orthogonal swing remainder, so that q = swing * twist.
// Grounded on utils::swing_twist_decomposition referenced by the Rust
// localizer: project the quaternion's vector part onto axis to isolate the
// twist, then divide it out to leave the swing.
func SwingTwist(q quat.Number, axis r3.Vec) (swing, twist quat.Number) {
	axis = r3.Unit(axis)
	projLen := q.Imag*axis.X + q.Jmag*axis.Y + q.Kmag*axis.Z
	twist = quat.Number{
		Real: q.Real,
		Imag: projLen * axis.X,
		Jmag: projLen * axis.Y,
		Kmag: projLen * axis.Z,
	}
	n := quat.Abs(twist)
	if n == 0 {
		twist = quat.Number{Real: 1}
	} else {
		twist = quat.Scale(1/n, twist)
	}
	twistInv := quat.Conj(twist)
	swing = quat.Mul(q, twistInv)
	return swing, twist
}

// ScaledClamp clamps a and b so that max(|a|,|b|) <= |bound| while preserving
// their ratio, ported from follow_path.rs's scaled_clamp.
func ScaledClamp(a, b, bound float64) (float64, float64) {
	bound = math.Abs(bound)
	maxAbs := math.Max(math.Abs(a), math.Abs(b))
	if maxAbs <= bound {
		return a, b
	}
	if math.Abs(a) > math.Abs(b) {
		return bound * sign(a), math.Abs(bound*b/a) * sign(b)
	}
	return math.Abs(bound*a/b) * sign(a), bound * sign(b)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	if v > 0 {
		return 1
	}
	return 0
}
