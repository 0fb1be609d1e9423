// Package localization fuses IMU and AprilTag observations into a single
// robot isometry at 60 Hz (C7), grounded line-for-line on
// original_source/lunabotics/lunabot/src/localization.rs.
package localization

import (
	"log/slog"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"lunabot/internal/spatial"
)

// LocalizationDelta is the tick period: 1/60 s.
const LocalizationDelta = 1.0 / 60.0

// AccelerometerLerpSpeed is the exponential-filter rate for gravity
// alignment, relative to LocalizationDelta.
const AccelerometerLerpSpeed = 150.0

// down is the world-frame down axis.
var down = r3.Vec{X: 0, Y: -1, Z: 0}

// IMUReading is one IMU sample: angular velocity and acceleration, both in
// the IMU's local frame.
type IMUReading struct {
	AngularVelocity r3.Vec
	Acceleration    r3.Vec
}

// AprilTagObservation is a pose reset signal: the tag's isometry in world
// frame, captured since the last tick.
type AprilTagObservation struct {
	Translation r3.Vec
	Rotation    quat.Number
}

// Localizer runs the 60 Hz fusion tick. IMU/tag ingestion is lock-free via
// atomic slots, matching the reference's AtomicCell-per-sensor design;
// Tick is meant to be called from a single dedicated goroutine.
type Localizer struct {
	log *slog.Logger

	isometry atomic.Pointer[spatial.Isometry]

	imuReadings []atomic.Pointer[IMUReading]
	aprilTag    atomic.Pointer[AprilTagObservation]
}

// NewLocalizer constructs a Localizer tracking numIMUs independent IMU
// slots, published isometry starting at identity.
func NewLocalizer(log *slog.Logger, numIMUs int) *Localizer {
	if log == nil {
		log = slog.Default()
	}
	l := &Localizer{log: log, imuReadings: make([]atomic.Pointer[IMUReading], numIMUs)}
	iso := spatial.Identity()
	l.isometry.Store(&iso)
	return l
}

// SetIMUReading publishes the latest reading for IMU index i. It is safe
// to call from any goroutine.
func (l *Localizer) SetIMUReading(i int, reading IMUReading) {
	l.imuReadings[i].Store(&reading)
}

// SetAprilTagObservation publishes a pose reset signal observed since the
// last tick. It is safe to call from any goroutine.
func (l *Localizer) SetAprilTagObservation(obs AprilTagObservation) {
	l.aprilTag.Store(&obs)
}

// Isometry returns the most recently published pose snapshot.
func (l *Localizer) Isometry() spatial.Isometry {
	return *l.isometry.Load()
}

// takeIMUReadings drains and averages every IMU slot that reported since
// the last tick, excluding slots left empty (missing readings excluded
// from the mean, §4.7 step 2).
func (l *Localizer) takeIMUReadings() (avg IMUReading, ok bool) {
	var sumAngular, sumAccel r3.Vec
	count := 0
	for i := range l.imuReadings {
		reading := l.imuReadings[i].Swap(nil)
		if reading == nil {
			continue
		}
		sumAngular = r3.Add(sumAngular, reading.AngularVelocity)
		sumAccel = r3.Add(sumAccel, reading.Acceleration)
		count++
	}
	if count == 0 {
		return IMUReading{}, false
	}
	scale := 1 / float64(count)
	return IMUReading{
		AngularVelocity: r3.Scale(scale, sumAngular),
		Acceleration:    r3.Scale(scale, sumAccel),
	}, true
}

// Tick advances the localizer by one 60 Hz step, publishing a new
// isometry. It is not safe to call concurrently with itself.
func (l *Localizer) Tick() {
	current := *l.isometry.Load()

	if !current.Finite() {
		l.log.Error("localizer: isometry invariant violated, resetting to identity")
		current = spatial.Identity()
	}

	imu, haveIMU := l.takeIMUReadings()

	if haveIMU {
		worldAccel := current.RotateVector(imu.Acceleration)
		angle := vectorAngle(worldAccel, down)
		if angle >= degToRad(1) {
			lerp := math.Min(1, AccelerometerLerpSpeed*LocalizationDelta)
			axis := r3.Unit(r3.Cross(down, worldAccel))
			correction := axisAngleQuat(axis, angle*lerp)
			current.Rotation = quat.Mul(correction, current.Rotation)
		}
	}

	if tag := l.aprilTag.Swap(nil); tag != nil {
		current.Translation = tag.Translation
		swing, _ := spatial.SwingTwist(current.Rotation, down)
		_, twist := spatial.SwingTwist(tag.Rotation, down)
		candidate := quat.Mul(swing, twist)
		snapped := spatial.Isometry{Translation: current.Translation, Rotation: candidate}
		if snapped.Finite() {
			current.Rotation = candidate
		} else {
			l.log.Error("localizer: AprilTag reset produced a non-finite rotation, ignoring")
		}
	} else if haveIMU {
		yawDelta := -imu.AngularVelocity.Y * LocalizationDelta
		current.Rotation = quat.Mul(axisAngleQuat(down, yawDelta), current.Rotation)
	}

	if !current.Finite() {
		l.log.Error("localizer: post-tick isometry non-finite, resetting to identity")
		current = spatial.Identity()
	}

	l.isometry.Store(&current)
}

func vectorAngle(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	cos := r3.Dot(a, b) / (na * nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

func axisAngleQuat(axis r3.Vec, angle float64) quat.Number {
	axis = r3.Unit(axis)
	half := angle / 2
	s := math.Sin(half)
	return quat.Number{Real: math.Cos(half), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
