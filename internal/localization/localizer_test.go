package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// P8: after any tick the published isometry's components are finite.
func TestLocalizer_TickAlwaysPublishesFiniteIsometry(t *testing.T) {
	l := NewLocalizer(nil, 2)
	l.SetIMUReading(0, IMUReading{AngularVelocity: r3.Vec{X: 0.1}, Acceleration: r3.Vec{Y: -9.81}})
	for i := 0; i < 120; i++ {
		l.Tick()
	}
	assert.True(t, l.Isometry().Finite())
}

// Scenario 6: feeding steady gravity for 1s at 60Hz keeps rotation near identity.
func TestLocalizer_GravityAlignmentStaysNearIdentity(t *testing.T) {
	l := NewLocalizer(nil, 1)
	for i := 0; i < 60; i++ {
		l.SetIMUReading(0, IMUReading{Acceleration: r3.Vec{X: 0, Y: -9.81, Z: 0}})
		l.Tick()
	}
	iso := l.Isometry()
	selfAngle := iso.AngleTo(iso.Rotation) // sanity: self-angle is zero
	assert.Equal(t, 0.0, selfAngle)

	identityAngle := iso.AngleTo(quat.Number{Real: 1})
	assert.Less(t, identityAngle, degToRad(1))
}

func TestLocalizer_MissingIMUReadingsExcludedFromMean(t *testing.T) {
	l := NewLocalizer(nil, 3)
	l.SetIMUReading(0, IMUReading{Acceleration: r3.Vec{Y: -9.81}})
	// IMUs 1 and 2 never report; takeIMUReadings must average only IMU 0.
	avg, ok := l.takeIMUReadings()
	assert.True(t, ok)
	assert.Equal(t, -9.81, avg.Acceleration.Y)
}

