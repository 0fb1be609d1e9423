package wire

import (
	"encoding/binary"
	"errors"
)

// ActuatorCommand discriminator bytes (§6).
const (
	CmdSetSpeed     = 0
	CmdSetDirection = 1
	CmdShake        = 2
	CmdStartPercuss = 3
	CmdStopPercuss  = 4
)

// ActuatorCommandSize is the fixed 5-byte frame length (§6).
const ActuatorCommandSize = 5

var ErrUnknownActuatorCommand = errors.New("wire: unknown actuator command discriminator")

// ActuatorCommand is the decoded 5-byte host->firmware frame.
type ActuatorCommand struct {
	Discriminator byte
	Speed         uint16 // SetSpeed
	Direction     byte   // SetDirection
	ActuatorID    byte   // SetSpeed / SetDirection
}

// EncodeActuatorCommand serializes cmd into a 5-byte frame.
func EncodeActuatorCommand(cmd ActuatorCommand) ([ActuatorCommandSize]byte, error) {
	var buf [ActuatorCommandSize]byte
	buf[0] = cmd.Discriminator
	switch cmd.Discriminator {
	case CmdSetSpeed:
		binary.LittleEndian.PutUint16(buf[1:3], cmd.Speed)
		buf[3] = cmd.ActuatorID
	case CmdSetDirection:
		buf[1] = cmd.Direction
		buf[3] = cmd.ActuatorID
	case CmdShake, CmdStartPercuss, CmdStopPercuss:
		// no payload; StopPercuss deasserts the percussor output and has
		// no side channel that could leave it half-applied, unlike the
		// simulator's stray set_high.
	default:
		return buf, ErrUnknownActuatorCommand
	}
	return buf, nil
}

// DecodeActuatorCommand parses a 5-byte host->firmware frame.
func DecodeActuatorCommand(buf []byte) (ActuatorCommand, error) {
	if len(buf) < ActuatorCommandSize {
		return ActuatorCommand{}, errors.New("wire: actuator command shorter than 5 bytes")
	}
	cmd := ActuatorCommand{Discriminator: buf[0]}
	switch cmd.Discriminator {
	case CmdSetSpeed:
		cmd.Speed = binary.LittleEndian.Uint16(buf[1:3])
		cmd.ActuatorID = buf[3]
	case CmdSetDirection:
		cmd.Direction = buf[1]
		cmd.ActuatorID = buf[3]
	case CmdShake, CmdStartPercuss, CmdStopPercuss:
	default:
		return cmd, ErrUnknownActuatorCommand
	}
	return cmd, nil
}
