package behavior

import "time"

// AIHeartbeatRate is the cadence at which the AI side sends a heartbeat
// (§6).
const AIHeartbeatRate = 50 * time.Millisecond

// HostHeartbeatListenRate is how long the host waits without a heartbeat
// before considering the AI dead (§6).
const HostHeartbeatListenRate = 500 * time.Millisecond

// Watchdog forces the blackboard's stage to SoftStop when no heartbeat
// arrives within HostHeartbeatListenRate, the consumer the distilled spec
// names the cadence for but does not itself specify (§6 supplement).
type Watchdog struct {
	lastBeat time.Time
	deadline time.Duration
}

// NewWatchdog constructs a Watchdog with the given deadline. A zero
// deadline selects HostHeartbeatListenRate.
func NewWatchdog(deadline time.Duration) *Watchdog {
	if deadline <= 0 {
		deadline = HostHeartbeatListenRate
	}
	return &Watchdog{deadline: deadline}
}

// Beat records a heartbeat received at now.
func (w *Watchdog) Beat(now time.Time) {
	w.lastBeat = now
}

// Check forces bb.Autonomy to SoftStop and zeroes steering if the
// deadline has lapsed since the last Beat, ties into §7's "stage forced
// to SoftStop on unrecoverable failure."
func (w *Watchdog) Check(bb *Blackboard, now time.Time) {
	if w.lastBeat.IsZero() {
		w.lastBeat = now
		return
	}
	if now.Sub(w.lastBeat) > w.deadline {
		bb.Autonomy = SoftStop
		bb.EnqueueAction(Action{Kind: ActionSetSteering})
	}
}
