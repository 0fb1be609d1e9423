// Package serialio wraps go.bug.st/serial with the reconnect-on-error loop
// the embedded link needs: the actuator controller is a USB device that can
// be unplugged and replug at a different path, and the host side must keep
// retrying rather than give up.
package serialio

import (
	"context"
	"errors"
	"time"

	"go.bug.st/serial"

	"lunabot/internal/telemetry/logging"
)

// ReconnectPolicy is the exponential backoff used when opening the port:
// after the n-th failed open (counting from 0) Connect waits
// InitialDelay * BackoffFactor^n, capped at MaxDelay. A failed read or
// write drops the port and goes back through Connect, which tries to
// reopen it at once.
type ReconnectPolicy struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultReconnectPolicy backs off from 100ms to 5s.
var DefaultReconnectPolicy = ReconnectPolicy{
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2.0,
}

func (p ReconnectPolicy) delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.BackoffFactor)
		if d > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// Mode is the serial link configuration for the firmware UART.
type Mode struct {
	Path     string
	BaudRate int
}

// Link keeps a go.bug.st/serial port open across reconnects, exposing
// Read/Write that block until the link is healthy again rather than
// surfacing a transient disconnect to the caller.
type Link struct {
	mode   Mode
	policy ReconnectPolicy
	log    logging.Logger

	// open is swapped out in tests to avoid touching a real tty.
	open func(path string, mode *serial.Mode) (serial.Port, error)

	port   serial.Port
	closed bool
}

// NewLink constructs a Link. The underlying port is opened lazily on the
// first Read/Write/Connect call.
func NewLink(mode Mode, policy ReconnectPolicy, log logging.Logger) *Link {
	return &Link{mode: mode, policy: policy, log: log, open: serial.Open}
}

// Connect opens the serial port, retrying with backoff until ctx is
// cancelled or the port opens successfully.
func (l *Link) Connect(ctx context.Context) error {
	if l.closed {
		return ErrClosed
	}
	if l.port != nil {
		return nil
	}
	attempt := 0
	for {
		port, err := l.open(l.mode.Path, &serial.Mode{BaudRate: l.mode.BaudRate})
		if err == nil {
			l.port = port
			return nil
		}
		if l.log != nil {
			l.log.WarnCtx(ctx, "serial open failed, retrying", "path", l.mode.Path, "attempt", attempt, "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.policy.delay(attempt)):
		}
		attempt++
	}
}

// Read fills buf from the link, reconnecting transparently on error.
func (l *Link) Read(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := l.Connect(ctx); err != nil {
			return 0, err
		}
		n, err := l.port.Read(buf)
		if err == nil {
			return n, nil
		}
		l.dropAndLog(ctx, "read", err)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
}

// Write sends buf over the link, reconnecting transparently on error.
func (l *Link) Write(ctx context.Context, buf []byte) error {
	for {
		if err := l.Connect(ctx); err != nil {
			return err
		}
		_, err := l.port.Write(buf)
		if err == nil {
			return nil
		}
		l.dropAndLog(ctx, "write", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (l *Link) dropAndLog(ctx context.Context, op string, err error) {
	if l.port != nil {
		_ = l.port.Close()
		l.port = nil
	}
	if l.log != nil {
		l.log.WarnCtx(ctx, "serial "+op+" failed, reconnecting", "err", err)
	}
}

// Close releases the underlying port, if open, and marks the Link closed:
// subsequent Connect/Read/Write calls return ErrClosed instead of
// reconnecting, since a caller that closed the link deliberately does not
// want it silently reopened.
func (l *Link) Close() error {
	l.closed = true
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}

// ErrClosed is returned by Connect/Read/Write once Close has been called.
var ErrClosed = errors.New("serialio: link closed")
