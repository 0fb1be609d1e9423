package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// Host->AI message discriminators.
const (
	HostBaseIsometry = iota
	HostFromLunabase
	HostActuatorReadings
)

// AI->Host message discriminators.
const (
	AISetSteering = iota
	AISetActuators
	AIHeartbeat
	AIStartPercuss
	AIStopPercuss
	AISetStage
)

var (
	ErrShortFrame  = errors.New("wire: frame shorter than its length prefix declares")
	ErrUnknownKind = errors.New("wire: unknown control-plane message discriminator")
)

// HostMessage is a decoded FromHost control-plane message (§6).
type HostMessage struct {
	Kind        byte
	Translation [3]float32 // BaseIsometry
	Quaternion  [4]float32 // BaseIsometry: w,x,y,z
	Payload     []byte     // FromLunabase
	Lift        uint16     // ActuatorReadings
	Bucket      uint16     // ActuatorReadings
}

// AIMessage is a decoded FromAI control-plane message (§6).
type AIMessage struct {
	Kind     byte
	Steering Steering2 // SetSteering
	Stage    byte      // SetStage
}

// Steering2 is the wire-level steering payload, kept separate from
// behavior.Steering so that wire does not depend on behavior.
type Steering2 struct {
	Left, Right float32
}

// EncodeHostMessage frames msg as a u32-length-prefixed payload, the
// length-prefixed control-plane framing the distilled spec names the
// variants for but leaves the wire layout of unspecified.
func EncodeHostMessage(msg HostMessage) []byte {
	var body []byte
	switch msg.Kind {
	case HostBaseIsometry:
		body = make([]byte, 1+29)
		body[0] = msg.Kind
		off := 1
		for i := 0; i < 3; i++ {
			binary.LittleEndian.PutUint32(body[off:], math.Float32bits(msg.Translation[i]))
			off += 4
		}
		for i := 0; i < 4; i++ {
			binary.LittleEndian.PutUint32(body[off:], math.Float32bits(msg.Quaternion[i]))
			off += 4
		}
	case HostFromLunabase:
		body = make([]byte, 1+2+len(msg.Payload))
		body[0] = msg.Kind
		binary.LittleEndian.PutUint16(body[1:3], uint16(len(msg.Payload)))
		copy(body[3:], msg.Payload)
	case HostActuatorReadings:
		body = make([]byte, 1+4)
		body[0] = msg.Kind
		binary.LittleEndian.PutUint16(body[1:3], msg.Lift)
		binary.LittleEndian.PutUint16(body[3:5], msg.Bucket)
	}
	return frame(body)
}

// DecodeHostMessage parses one length-prefixed FromHost message from the
// start of buf, returning the message and the number of bytes consumed.
func DecodeHostMessage(buf []byte) (HostMessage, int, error) {
	body, consumed, err := unframe(buf)
	if err != nil {
		return HostMessage{}, 0, err
	}
	if len(body) == 0 {
		return HostMessage{}, 0, ErrShortFrame
	}
	msg := HostMessage{Kind: body[0]}
	switch msg.Kind {
	case HostBaseIsometry:
		off := 1
		for i := 0; i < 3; i++ {
			msg.Translation[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[off:]))
			off += 4
		}
		for i := 0; i < 4; i++ {
			msg.Quaternion[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[off:]))
			off += 4
		}
	case HostFromLunabase:
		n := binary.LittleEndian.Uint16(body[1:3])
		msg.Payload = append([]byte(nil), body[3:3+int(n)]...)
	case HostActuatorReadings:
		msg.Lift = binary.LittleEndian.Uint16(body[1:3])
		msg.Bucket = binary.LittleEndian.Uint16(body[3:5])
	default:
		return msg, consumed, ErrUnknownKind
	}
	return msg, consumed, nil
}

// EncodeAIMessage frames msg as a u32-length-prefixed payload.
func EncodeAIMessage(msg AIMessage) []byte {
	var body []byte
	switch msg.Kind {
	case AISetSteering:
		body = make([]byte, 1+8)
		body[0] = msg.Kind
		binary.LittleEndian.PutUint32(body[1:5], math.Float32bits(msg.Steering.Left))
		binary.LittleEndian.PutUint32(body[5:9], math.Float32bits(msg.Steering.Right))
	case AISetStage:
		body = []byte{msg.Kind, msg.Stage}
	default: // SetActuators, Heartbeat, StartPercuss, StopPercuss: no payload
		body = []byte{msg.Kind}
	}
	return frame(body)
}

// DecodeAIMessage parses one length-prefixed FromAI message from the
// start of buf, returning the message and the number of bytes consumed.
func DecodeAIMessage(buf []byte) (AIMessage, int, error) {
	body, consumed, err := unframe(buf)
	if err != nil {
		return AIMessage{}, 0, err
	}
	if len(body) == 0 {
		return AIMessage{}, 0, ErrShortFrame
	}
	msg := AIMessage{Kind: body[0]}
	switch msg.Kind {
	case AISetSteering:
		msg.Steering.Left = math.Float32frombits(binary.LittleEndian.Uint32(body[1:5]))
		msg.Steering.Right = math.Float32frombits(binary.LittleEndian.Uint32(body[5:9]))
	case AISetStage:
		msg.Stage = body[1]
	case AISetActuators, AIHeartbeat, AIStartPercuss, AIStopPercuss:
	default:
		return msg, consumed, ErrUnknownKind
	}
	return msg, consumed, nil
}

func frame(body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

func unframe(buf []byte) (body []byte, consumed int, err error) {
	if len(buf) < 4 {
		return nil, 0, ErrShortFrame
	}
	n := binary.LittleEndian.Uint32(buf)
	if len(buf) < 4+int(n) {
		return nil, 0, ErrShortFrame
	}
	return buf[4 : 4+n], 4 + int(n), nil
}
