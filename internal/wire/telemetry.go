// Package wire implements the binary frame codecs of §6: the embedded
// telemetry frame, the actuator command frame, and a length-prefixed
// host<->AI control-plane codec, all via encoding/binary with no
// protobuf/JSON on these hot paths, matching the source's hand-rolled
// framing.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// TelemetryFrameSize is the length of the firmware->host record (§6).
const TelemetryFrameSize = 105

// telemetry discriminator bytes.
const (
	TelemetryReading = 0
	TelemetryError   = 3
)

// IMU sub-record discriminator bytes.
const (
	IMUReading = 0
	IMUNoData  = 2
	IMUError   = 3
)

var ErrShortTelemetryFrame = errors.New("wire: telemetry frame shorter than 105 bytes")

// IMUSample is one of the four 25-byte IMU sub-records in a
// TelemetryFrame.
type IMUSample struct {
	Discriminator byte
	AngularRate   [3]float32
	Acceleration  [3]float32
}

// ActuatorPot is the 4-byte actuator potentiometer sub-record.
type ActuatorPot struct {
	Lift, Bucket uint16
}

// TelemetryFrame is the decoded 105-byte embedded telemetry record.
type TelemetryFrame struct {
	Discriminator byte
	IMUs          [4]IMUSample
	Pot           ActuatorPot
}

// DecodeTelemetryFrame parses a 105-byte telemetry record.
func DecodeTelemetryFrame(buf []byte) (TelemetryFrame, error) {
	if len(buf) < TelemetryFrameSize {
		return TelemetryFrame{}, ErrShortTelemetryFrame
	}
	var f TelemetryFrame
	f.Discriminator = buf[0]
	offset := 1
	for i := 0; i < 4; i++ {
		f.IMUs[i] = decodeIMUSample(buf[offset : offset+25])
		offset += 25
	}
	f.Pot.Lift = binary.LittleEndian.Uint16(buf[offset:])
	f.Pot.Bucket = binary.LittleEndian.Uint16(buf[offset+2:])
	return f, nil
}

func decodeIMUSample(buf []byte) IMUSample {
	var s IMUSample
	s.Discriminator = buf[0]
	for i := 0; i < 3; i++ {
		s.AngularRate[i] = decodeF32LE(buf[1+i*4:])
	}
	for i := 0; i < 3; i++ {
		s.Acceleration[i] = decodeF32LE(buf[13+i*4:])
	}
	return s
}

func decodeF32LE(buf []byte) float32 {
	bits := binary.LittleEndian.Uint32(buf)
	return math.Float32frombits(bits)
}

// EncodeTelemetryFrame serializes f into a freshly allocated 105-byte
// buffer, the inverse of DecodeTelemetryFrame (used by sim/test harnesses
// that synthesize firmware traffic).
func EncodeTelemetryFrame(f TelemetryFrame) []byte {
	buf := make([]byte, TelemetryFrameSize)
	buf[0] = f.Discriminator
	offset := 1
	for i := 0; i < 4; i++ {
		encodeIMUSample(buf[offset:offset+25], f.IMUs[i])
		offset += 25
	}
	binary.LittleEndian.PutUint16(buf[offset:], f.Pot.Lift)
	binary.LittleEndian.PutUint16(buf[offset+2:], f.Pot.Bucket)
	return buf
}

func encodeIMUSample(buf []byte, s IMUSample) {
	buf[0] = s.Discriminator
	for i := 0; i < 3; i++ {
		encodeF32LE(buf[1+i*4:], s.AngularRate[i])
	}
	for i := 0; i < 3; i++ {
		encodeF32LE(buf[13+i*4:], s.Acceleration[i])
	}
}

func encodeF32LE(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}
