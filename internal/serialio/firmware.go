package serialio

import (
	"context"
	"io"

	"lunabot/internal/wire"
)

// FirmwareLink reads telemetry frames and writes actuator commands over a
// Link, framing both to the fixed sizes wire defines.
type FirmwareLink struct {
	link *Link
}

func NewFirmwareLink(link *Link) *FirmwareLink {
	return &FirmwareLink{link: link}
}

// ReadTelemetry blocks for one full 105-byte telemetry frame.
func (f *FirmwareLink) ReadTelemetry(ctx context.Context) (wire.TelemetryFrame, error) {
	buf := make([]byte, wire.TelemetryFrameSize)
	if err := f.readFull(ctx, buf); err != nil {
		return wire.TelemetryFrame{}, err
	}
	return wire.DecodeTelemetryFrame(buf)
}

// WriteActuatorCommand sends one 5-byte actuator frame.
func (f *FirmwareLink) WriteActuatorCommand(ctx context.Context, cmd wire.ActuatorCommand) error {
	buf, err := wire.EncodeActuatorCommand(cmd)
	if err != nil {
		return err
	}
	return f.link.Write(ctx, buf[:])
}

// readFull reads until buf is completely filled, since go.bug.st/serial's
// Read can return short reads on a UART.
func (f *FirmwareLink) readFull(ctx context.Context, buf []byte) error {
	for filled := 0; filled < len(buf); {
		n, err := f.link.Read(ctx, buf[filled:])
		if n == 0 && err == nil {
			return io.ErrNoProgress
		}
		if err != nil {
			return err
		}
		filled += n
	}
	return nil
}
