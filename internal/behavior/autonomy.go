package behavior

import "lunabot/internal/behavior/bt"

// IncomingCommand is what the transport layer hands the autonomy loop
// each tick: either a teleop steering override or a SoftStop request. Both
// fields nil/false means nothing arrived this tick.
type IncomingCommand struct {
	Steering *Steering
	SoftStop bool
}

// listenForLunabase is the autonomy loop's first ParallelAny branch: a
// received Steering message takes autonomy off (the blackboard moves to
// TeleOp) and surfaces Success; a SoftStop request moves it to SoftStop
// and forces Failure (§4.6).
func listenForLunabase(bb *Blackboard, cmd *IncomingCommand) bt.Status {
	if cmd == nil {
		return bt.Running
	}
	if cmd.SoftStop {
		bb.Autonomy = SoftStop
		return bt.Failure
	}
	if cmd.Steering != nil {
		bb.Autonomy = TeleOp
		return bt.Success
	}
	return bt.Running
}

// NewAutonomyLoop builds the top-level autonomy behavior: while
// bb.Autonomy == Autonomy, race the lunabase listener against the path
// follower, terminating with whichever resolves first (§4.6).
func NewAutonomyLoop(bb *Blackboard, incoming *IncomingCommand) bt.Node {
	listen := bt.Func(func(raw any) bt.Status {
		return listenForLunabase(bb, incoming)
	})
	traverse := NewFollowPath(bb)
	active := bt.Func(func(raw any) bt.Status {
		if bb.Autonomy == Autonomy {
			return bt.Success
		}
		return bt.Failure
	})
	return bt.NewWhileLoop(active, bt.NewParallelAny(listen, traverse))
}
