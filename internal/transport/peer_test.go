package transport

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reliableDatagram(index uint64, payload []byte) []byte {
	buf := make([]byte, len(payload)+8)
	copy(buf, payload)
	binary.BigEndian.PutUint64(buf[len(payload):], index)
	return buf
}

// Scenario 1: ping-pong reliable.
func TestPeer_PingPongReliable(t *testing.T) {
	builder := NewBuilder(0)
	buf := make([]byte, 16)
	for i := range buf[:8] {
		buf[i] = 0x41
	}
	borrowed := NewBorrowed(buf, nil)
	out, idx, err := builder.NewReliable(borrowed)
	require.NoError(t, err)
	require.Equal(t, ReliableIndex(1), idx)

	a := NewPeer(DefaultRetransmitInterval, DefaultMaxReceived)
	now := time.Now()
	action := a.Poll(Event{Kind: EventDataToSend, ToSend: out}, now)
	require.Equal(t, ActionSendData, action.Kind)
	require.Same(t, borrowed, action.Send)

	b := NewPeer(DefaultRetransmitInterval, DefaultMaxReceived)
	recv := b.Poll(Event{Kind: EventIncomingData, Incoming: buf}, now)
	require.Equal(t, ActionHandleDataAndSend, recv.Kind)
	assert.Equal(t, []byte{0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41}, recv.Data)

	wantAck := idx.withAckBit()
	assert.Equal(t, wantAck, recv.Ack)

	ackAction := a.Poll(Event{Kind: EventIncomingData, Incoming: recv.Ack[:]}, now)
	assert.NotEqual(t, ActionHandleError, ackAction.Kind)
}

func (idx ReliableIndex) withAckBit() (out [8]byte) {
	binary.BigEndian.PutUint64(out[:], uint64(idx)|ackBit)
	return out
}

// Scenario 2 / P2: duplicate suppression.
func TestPeer_DuplicateReliable_OneCallback(t *testing.T) {
	peer := NewPeer(DefaultRetransmitInterval, DefaultMaxReceived)
	datagram := reliableDatagram(7, []byte("payload!"))
	now := time.Now()

	first := peer.Poll(Event{Kind: EventIncomingData, Incoming: datagram}, now)
	require.Equal(t, ActionHandleDataAndSend, first.Kind)
	require.NotNil(t, first.Data)

	for i := 0; i < 2; i++ {
		dup := peer.Poll(Event{Kind: EventIncomingData, Incoming: datagram}, now)
		require.Equal(t, ActionHandleDataAndSend, dup.Kind)
		assert.Nil(t, dup.Data, "duplicate must not redeliver payload")
		assert.Equal(t, first.Ack, dup.Ack, "duplicate must still ack")
	}
}

// P3: received set never exceeds MaxReceived.
func TestPeer_ReceivedSetBounded(t *testing.T) {
	const max = 4
	peer := NewPeer(DefaultRetransmitInterval, max)
	now := time.Now()
	for i := uint64(1); i <= 10; i++ {
		peer.Poll(Event{Kind: EventIncomingData, Incoming: reliableDatagram(i, []byte("12345678"))}, now)
	}
	assert.LessOrEqual(t, len(peer.received.order), max)
	assert.LessOrEqual(t, len(peer.received.present), max)
}

// P4: ack is exactly (i | 2^63).to_be_bytes().
func TestPeer_AckIsIndexWithMSBSet(t *testing.T) {
	peer := NewPeer(DefaultRetransmitInterval, DefaultMaxReceived)
	now := time.Now()
	const i = uint64(42)
	action := peer.Poll(Event{Kind: EventIncomingData, Incoming: reliableDatagram(i, []byte("12345678"))}, now)
	var want [8]byte
	binary.BigEndian.PutUint64(want[:], i|ackBit)
	assert.Equal(t, want, action.Ack)
}

func TestPeer_UnreliableDelivered(t *testing.T) {
	peer := NewPeer(DefaultRetransmitInterval, DefaultMaxReceived)
	payload := []byte("12345678")
	datagram := append(append([]byte{}, payload...), make([]byte, 8)...)
	action := peer.Poll(Event{Kind: EventIncomingData, Incoming: datagram}, time.Now())
	require.Equal(t, ActionHandleData, action.Kind)
	assert.Equal(t, payload, action.Data)
}

func TestPeer_PacketTooSmall(t *testing.T) {
	peer := NewPeer(DefaultRetransmitInterval, DefaultMaxReceived)
	action := peer.Poll(Event{Kind: EventIncomingData, Incoming: []byte{1, 2, 3}}, time.Now())
	require.Equal(t, ActionHandleError, action.Kind)
	assert.ErrorIs(t, action.Err, ErrPacketTooSmall)
}

func TestPeer_RetransmissionRotation(t *testing.T) {
	builder := NewBuilder(0)
	payload := make([]byte, 9)
	borrowed := NewBorrowed(payload, nil)
	out, _, err := builder.NewReliable(borrowed)
	require.NoError(t, err)

	peer := NewPeer(50*time.Millisecond, DefaultMaxReceived)
	start := time.Now()
	first := peer.Poll(Event{Kind: EventDataToSend, ToSend: out}, start)
	require.Equal(t, ActionSendData, first.Kind)

	idle := peer.Poll(Event{Kind: EventNoEvent}, start)
	require.Equal(t, ActionWaitForDuration, idle.Kind)
	assert.Greater(t, idle.Duration, time.Duration(0))

	later := start.Add(60 * time.Millisecond)
	retransmit := peer.Poll(Event{Kind: EventNoEvent}, later)
	require.Equal(t, ActionSendData, retransmit.Kind)
	assert.Same(t, borrowed, retransmit.Send)
}

func TestPeer_CancelAllClearsRetransmissions(t *testing.T) {
	builder := NewBuilder(0)
	out, _, err := builder.NewReliable(NewBorrowed(make([]byte, 9), nil))
	require.NoError(t, err)

	peer := NewPeer(10*time.Millisecond, DefaultMaxReceived)
	now := time.Now()
	peer.Poll(Event{Kind: EventDataToSend, ToSend: out}, now)
	peer.Poll(Event{Kind: EventDataToSend, ToSend: builder.CancelAll()}, now)

	idle := peer.Poll(Event{Kind: EventNoEvent}, now.Add(time.Second))
	assert.Equal(t, ActionWaitForData, idle.Kind)
}

func TestBorrowed_ReleasesExactlyOnce(t *testing.T) {
	count := 0
	b := NewBorrowed([]byte("hi"), func() { count++ })
	b.Release()
	b.Release()
	assert.Equal(t, 1, count)
}

func TestBuilder_RejectsUndersizedAndOversized(t *testing.T) {
	builder := NewBuilder(16)
	_, err := builder.NewUnreliable(NewBorrowed(make([]byte, 3), nil))
	assert.ErrorIs(t, err, ErrPacketTooSmall)

	_, _, err = builder.NewReliable(NewBorrowed(make([]byte, 100), nil))
	assert.ErrorIs(t, err, ErrPacketTooLong)
}
