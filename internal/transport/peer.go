package transport

import (
	"encoding/binary"
	"time"
)

// DefaultRetransmitInterval is the peer ack retransmit interval (§5).
const DefaultRetransmitInterval = 100 * time.Millisecond

// DefaultMaxReceived bounds the received set (§3).
const DefaultMaxReceived = 256

// EventKind discriminates the four inputs a Peer can be polled with.
type EventKind int

const (
	EventIncomingData EventKind = iota
	EventDataToSend
	EventHotPacketSent
	EventNoEvent
)

// Event is a pure input to Peer.Poll.
type Event struct {
	Kind     EventKind
	Incoming []byte       // valid for EventIncomingData: the whole datagram
	ToSend   OutgoingData // valid for EventDataToSend
}

// ActionKind discriminates the six outputs of Peer.Poll.
type ActionKind int

const (
	ActionWaitForData ActionKind = iota
	ActionWaitForDuration
	ActionSendData
	ActionHandleData
	ActionHandleDataAndSend
	ActionHandleError
)

// Action is the state machine's recommendation to the caller.
type Action struct {
	Kind     ActionKind
	Duration time.Duration // ActionWaitForDuration
	Send     *Borrowed     // ActionSendData: bytes to transmit now
	Data     []byte        // ActionHandleData / ActionHandleDataAndSend: payload for the application; nil on a duplicate
	Ack      [8]byte       // ActionHandleDataAndSend: ack bytes to transmit
	Err      error         // ActionHandleError
}

type retransmission struct {
	sendAt time.Time
	data   *Borrowed
}

// receivedSet is a bounded insertion-ordered set of reliable indices,
// evicting the oldest entry once MaxReceived is exceeded.
type receivedSet struct {
	max     int
	order   []ReliableIndex
	present map[ReliableIndex]struct{}
}

func newReceivedSet(max int) *receivedSet {
	return &receivedSet{max: max, present: make(map[ReliableIndex]struct{}, max)}
}

// insert reports whether idx was newly inserted (false means duplicate).
func (s *receivedSet) insert(idx ReliableIndex) bool {
	if _, ok := s.present[idx]; ok {
		return false
	}
	s.order = append(s.order, idx)
	s.present[idx] = struct{}{}
	for len(s.order) > s.max {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.present, oldest)
	}
	return true
}

// Peer is the per-link reliability state machine: a pure event-driven core
// with retransmission scheduling and duplicate suppression, grounded on
// cakap2's PeerStateMachine.
type Peer struct {
	retransmitInterval time.Duration
	retransMap         map[ReliableIndex]*retransmission
	retransQueue       []ReliableIndex
	received           *receivedSet
}

// NewPeer constructs a Peer with the given retransmit interval and received
// set capacity. Zero values select the §5 defaults.
func NewPeer(retransmitInterval time.Duration, maxReceived int) *Peer {
	if retransmitInterval <= 0 {
		retransmitInterval = DefaultRetransmitInterval
	}
	if maxReceived <= 0 {
		maxReceived = DefaultMaxReceived
	}
	return &Peer{
		retransmitInterval: retransmitInterval,
		retransMap:         make(map[ReliableIndex]*retransmission),
		received:           newReceivedSet(maxReceived),
	}
}

// Poll advances the state machine by one event and returns the
// recommended action. It never blocks and never panics; malformed input
// surfaces as ActionHandleError.
func (p *Peer) Poll(event Event, now time.Time) Action {
	switch event.Kind {
	case EventIncomingData:
		return p.pollIncoming(event.Incoming, now)
	case EventDataToSend:
		return p.pollDataToSend(event.ToSend, now)
	case EventHotPacketSent:
		return p.resolveIdle(now)
	default: // EventNoEvent
		return p.resolveIdle(now)
	}
}

func (p *Peer) pollIncoming(datagram []byte, now time.Time) Action {
	if len(datagram) < 8 {
		return Action{Kind: ActionHandleError, Err: ErrPacketTooSmall}
	}
	tagBytes := datagram[len(datagram)-8:]
	payload := datagram[:len(datagram)-8]
	tag := binary.BigEndian.Uint64(tagBytes)

	if tag == 0 {
		return Action{Kind: ActionHandleData, Data: payload}
	}
	if tag&ackBit == 0 {
		idx := ReliableIndex(tag)
		isNew := p.received.insert(idx)
		var ack [8]byte
		binary.BigEndian.PutUint64(ack[:], tag|ackBit)
		action := Action{Kind: ActionHandleDataAndSend, Ack: ack}
		if isNew {
			action.Data = payload
		}
		return action
	}
	// ack: clear MSB, remove the matching retransmission record.
	idx := ReliableIndex(tag &^ ackBit)
	delete(p.retransMap, idx)
	return p.resolveIdle(now)
}

func (p *Peer) pollDataToSend(data OutgoingData, now time.Time) Action {
	switch data.Kind {
	case KindReliable:
		p.retransMap[data.Index] = &retransmission{
			sendAt: now.Add(p.retransmitInterval),
			data:   data.Buf,
		}
		p.retransQueue = append(p.retransQueue, data.Index)
		return Action{Kind: ActionSendData, Send: data.Buf}
	case KindUnreliable:
		return Action{Kind: ActionSendData, Send: data.Buf}
	case KindCancel:
		delete(p.retransMap, data.Index)
		return p.resolveIdle(now)
	default: // KindCancelAll
		p.retransMap = make(map[ReliableIndex]*retransmission)
		p.retransQueue = nil
		return p.resolveIdle(now)
	}
}

// resolveIdle peeks the retransmission queue: pops and skips stale entries
// (present in the queue but no longer in the map), then either rotates a
// due entry to the tail and sends it, or reports how long until it is due.
func (p *Peer) resolveIdle(now time.Time) Action {
	for len(p.retransQueue) > 0 {
		idx := p.retransQueue[0]
		record, ok := p.retransMap[idx]
		if !ok {
			p.retransQueue = p.retransQueue[1:]
			continue
		}
		if !record.sendAt.After(now) {
			p.retransQueue = p.retransQueue[1:]
			record.sendAt = now.Add(p.retransmitInterval)
			p.retransQueue = append(p.retransQueue, idx)
			return Action{Kind: ActionSendData, Send: record.data}
		}
		return Action{Kind: ActionWaitForDuration, Duration: record.sendAt.Sub(now)}
	}
	return Action{Kind: ActionWaitForData}
}
