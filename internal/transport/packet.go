// Package transport implements the reliable datagram layer between the
// robot and its base station: packet framing (this file) and the per-peer
// reliability state machine (peer.go), grounded line-for-line on the
// reference cakap2 crate.
package transport

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
)

// MaxPayload is the default maximum packet length in bytes.
const MaxPayload = 1400

// minPayload is the minimum packet length: at least one payload byte plus
// the trailing 8-byte tag.
const minPayload = 9

var (
	ErrPacketTooSmall = errors.New("transport: packet smaller than minimum payload")
	ErrPacketTooLong  = errors.New("transport: packet exceeds maximum payload")
	ErrIndexOverflow  = errors.New("transport: reliable index counter overflowed into the ack bit")
	ErrInvalidPacket  = errors.New("transport: invalid packet tag")
)

// ackBit marks the MSB of the trailing 8-byte tag.
const ackBit uint64 = 1 << 63

// ReliableIndex is the monotonically allocated identifier embedded in a
// reliable packet's trailing 8 bytes.
type ReliableIndex uint64

// Borrowed is a byte region owned by the caller and lent to the transport
// until Release is invoked. It is the Go stand-in for the reference
// implementation's Drop-guarded BorrowedBytes: the transport never reads,
// writes, or frees the region after release.
type Borrowed struct {
	buf     []byte
	release func()
	once    sync.Once
}

// NewBorrowed wraps buf with a release hook that the transport (or its
// caller) invokes exactly once when the buffer is no longer needed.
func NewBorrowed(buf []byte, release func()) *Borrowed {
	return &Borrowed{buf: buf, release: release}
}

// Bytes returns the underlying buffer. Valid only before Release is called.
func (b *Borrowed) Bytes() []byte { return b.buf }

// Release invokes the release hook exactly once, even if called
// concurrently or repeatedly.
func (b *Borrowed) Release() {
	b.once.Do(func() {
		if b.release != nil {
			b.release()
		}
	})
}

// OutgoingKind discriminates the four packet-framing operations of C1.
type OutgoingKind int

const (
	KindUnreliable OutgoingKind = iota
	KindReliable
	KindCancel
	KindCancelAll
)

// OutgoingData is the result of a packet-framing operation: a borrowed
// buffer ready to hand to the peer state machine, or (for Cancel/CancelAll)
// a control message carrying no payload.
type OutgoingData struct {
	Kind  OutgoingKind
	Buf   *Borrowed
	Index ReliableIndex // meaningful for KindReliable and KindCancel
}

// Builder allocates reliable indices and frames outgoing packets.
type Builder struct {
	counter    atomic.Uint64
	maxPayload int
}

// NewBuilder constructs a Builder with the given maximum payload length.
// A maxPayload of 0 selects MaxPayload.
func NewBuilder(maxPayload int) *Builder {
	if maxPayload <= 0 {
		maxPayload = MaxPayload
	}
	b := &Builder{maxPayload: maxPayload}
	b.counter.Store(1) // reliable indices start at 1
	return b
}

func (b *Builder) checkSize(buf []byte) error {
	if len(buf) < minPayload {
		return ErrPacketTooSmall
	}
	if len(buf) > b.maxPayload {
		return ErrPacketTooLong
	}
	return nil
}

// NewUnreliable frames buf as a fire-and-forget packet: the trailing 8
// bytes are overwritten with zero, in place, to avoid copying the caller's
// buffer.
func (b *Builder) NewUnreliable(buf *Borrowed) (OutgoingData, error) {
	if err := b.checkSize(buf.buf); err != nil {
		return OutgoingData{}, err
	}
	tag := buf.buf[len(buf.buf)-8:]
	for i := range tag {
		tag[i] = 0
	}
	return OutgoingData{Kind: KindUnreliable, Buf: buf}, nil
}

// NewReliable frames buf as a reliable packet, writing a fresh big-endian
// index into the trailing 8 bytes. An index that would collide with the
// ack bit is rejected rather than silently wrapped.
func (b *Builder) NewReliable(buf *Borrowed) (OutgoingData, ReliableIndex, error) {
	if err := b.checkSize(buf.buf); err != nil {
		return OutgoingData{}, 0, err
	}
	idx := b.counter.Add(1) - 1
	if idx&ackBit != 0 {
		return OutgoingData{}, 0, ErrIndexOverflow
	}
	binary.BigEndian.PutUint64(buf.buf[len(buf.buf)-8:], idx)
	return OutgoingData{Kind: KindReliable, Buf: buf, Index: ReliableIndex(idx)}, ReliableIndex(idx), nil
}

// Cancel frames a cancellation control message for a single reliable index.
func (b *Builder) Cancel(index ReliableIndex) OutgoingData {
	return OutgoingData{Kind: KindCancel, Index: index}
}

// CancelAll frames a cancellation control message for every outstanding
// reliable send.
func (b *Builder) CancelAll() OutgoingData {
	return OutgoingData{Kind: KindCancelAll}
}
