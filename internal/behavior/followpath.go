package behavior

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"lunabot/internal/behavior/bt"
	"lunabot/internal/spatial"
)

// BackingAwayDistance is how far the robot backs up when stuck (§3/§4.6).
const BackingAwayDistance = 0.3

// MaxStuckDuration is the time in one spot before backing up and
// re-planning (§4.6).
const MaxStuckDuration = 1500 * time.Millisecond

// MinDistUntilTransformUpdate is the minimum pose delta before
// LatestTransform refreshes.
const MinDistUntilTransformUpdate = 0.01

// MinAngleUntilTransformUpdate is the minimum heading delta (radians)
// before LatestTransform refreshes.
const MinAngleUntilTransformUpdate = 0.1

// PauseAfterMovingDuration is how long FollowPath waits after finishing
// before reporting its final status, ported from follow_path.rs's
// do_then_wait wrapper.
const PauseAfterMovingDuration = 2 * time.Second

// spinThresholdDeg is the angular error above which the robot spins in
// place instead of arcing (§4.6).
const spinThresholdDeg = 20.0

// NewFollowPath builds the path-follow behavior: the core state machine
// wrapped so that after it settles (Success or Failure), the tree still
// waits PauseAfterMovingDuration before reporting that status onward —
// ported from follow_path.rs's do_then_wait(AssertCancelSafe(...), ...).
func NewFollowPath(bb *Blackboard) bt.Node {
	inner := bt.NewAssertCancelSafe(func(raw any) bt.Status {
		return followPathInner(raw.(*Blackboard))
	})
	wait := bt.NewWait(PauseAfterMovingDuration)
	return bt.NewTryCatch(
		bt.NewSequence(adapt(bb, inner), adapt(bb, wait)),
		bt.NewInvert(adapt(bb, wait)),
	)
}

// adapt lets a bb-typed node run inside the bt package's `any` blackboard
// convention without every call site re-casting.
func adapt(bb *Blackboard, n bt.Node) bt.Node {
	return adaptedNode{bb: bb, n: n}
}

type adaptedNode struct {
	bb *Blackboard
	n  bt.Node
}

func (a adaptedNode) Tick(_ any) bt.Status { return a.n.Tick(a.bb) }
func (a adaptedNode) Cancel()              { a.n.Cancel() }

// followPathInner is the ported logic of follow_path.rs's
// follow_path_inner: backing-away branch, empty-path branch,
// waypoint-completion branch, stuck detection, and arc/spin control.
func followPathInner(bb *Blackboard) bt.Status {
	pos := bb.Pos2()

	if bb.BackingAwayFrom != nil {
		if pos.Sub(*bb.BackingAwayFrom).Len() > BackingAwayDistance {
			bb.EnqueueAction(Action{Kind: ActionSetSteering})
			bb.BackingAwayFrom = nil
			return bt.Failure // restart traverse section of the behavior tree
		}
		bb.EnqueueAction(Action{Kind: ActionSetSteering, Steering: Steering{Left: -1, Right: 0, Weight: DefaultSteeringWeight}})
		return bt.Running
	}

	if len(bb.Path) == 0 {
		bb.EnqueueAction(Action{Kind: ActionSetSteering})
		return bt.Running
	}

	curr := bb.Path[0]
	heading := headingVector(bb.Isometry)

	if curr.IsFinished(pos, heading) {
		pathLeadsToGoal := bb.TargetCell != nil && bb.Path[len(bb.Path)-1].Cell == *bb.TargetCell
		bb.Path = bb.Path[1:]
		if len(bb.Path) == 0 {
			bb.EnqueueAction(Action{Kind: ActionSetSteering})
			bb.ClearLatestTransform()
			if pathLeadsToGoal {
				bb.EnqueueAction(Action{Kind: ActionClearPointsToAvoid})
				return bt.Success
			}
			return bt.Failure
		}
		return bt.Running
	}

	if !updateStuckDetection(bb, pos) {
		return bt.Running // stuck; AvoidCell/backing-away already queued
	}

	if curr.Kind == MoveToBackwards {
		heading = heading.Scale(-1)
	}

	toFirst := curr.Pos.Sub(pos).Normalize()
	headingAngle := heading.Angle(spatial.Vec2{X: 0, Y: -1})
	if heading.X < 0 {
		toFirst = spatial.RotateCCW(toFirst, headingAngle)
	} else {
		toFirst = spatial.RotateCCW(toFirst, -headingAngle)
	}

	switch curr.Kind {
	case MoveTo, MoveToBackwards:
		angleDeg := toFirst.Angle(spatial.Vec2{X: 0, Y: -1}) * 180 / math.Pi
		if angleDeg > spinThresholdDeg {
			bb.EnqueueAction(Action{Kind: ActionSetSteering, Steering: spinTowards(toFirst)})
		} else {
			l, r := spatial.ScaledClamp(-toFirst.Y+toFirst.X*1.2, -toFirst.Y-toFirst.X*1.2, 1.0)
			if curr.Kind == MoveToBackwards {
				l, r = -l, -r
			}
			bb.EnqueueAction(Action{Kind: ActionSetSteering, Steering: Steering{Left: l, Right: r, Weight: DefaultSteeringWeight}})
		}
	case FaceTowards:
		bb.EnqueueAction(Action{Kind: ActionSetSteering, Steering: spinTowards(toFirst)})
	}

	bb.PollWhen = PollWhen{Kind: PollWhenInstant, At: bb.Now.Add(16 * time.Millisecond)}
	return bt.Running
}

func spinTowards(toFirst spatial.Vec2) Steering {
	if toFirst.X > 0 {
		return Steering{Left: 1, Right: -1, Weight: DefaultSteeringWeight}
	}
	return Steering{Left: -1, Right: 1, Weight: DefaultSteeringWeight}
}

// headingVector rotates the reference forward axis (0,-1), the same
// convention follow_path.rs compares against, by the isometry's rotation
// and projects it onto the ground plane.
func headingVector(iso spatial.Isometry) spatial.Vec2 {
	rotated := iso.RotateVector(r3.Vec{X: 0, Y: 0, Z: -1})
	return spatial.Vec2{X: rotated.X, Y: rotated.Z}
}

// updateStuckDetection refreshes LatestTransform when the robot has moved
// or rotated enough, or detects a stuck condition and kicks off
// backing-away, returning false when the caller should stop this tick
// early.
func updateStuckDetection(bb *Blackboard, pos spatial.Vec2) bool {
	rot := bb.Isometry.Rotation
	if !bb.LatestTransform.Valid {
		bb.LatestTransform = LatestTransform{Pos: pos, Rotation: rot, At: bb.Now, Valid: true}
		return true
	}
	moved := pos.Sub(bb.LatestTransform.Pos).Len()
	rotated := angleBetween(bb.LatestTransform.Rotation, rot)
	if moved > MinDistUntilTransformUpdate || rotated > MinAngleUntilTransformUpdate {
		bb.LatestTransform = LatestTransform{Pos: pos, Rotation: rot, At: bb.Now, Valid: true}
		return true
	}
	if bb.Now.Sub(bb.LatestTransform.At) > MaxStuckDuration {
		bb.EnqueueAction(Action{Kind: ActionAvoidCell})
		anchor := pos
		bb.BackingAwayFrom = &anchor
		return false
	}
	return true
}

func angleBetween(a, b quat.Number) float64 {
	rel := quat.Mul(quat.Conj(a), b)
	w := rel.Real
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	return 2 * math.Acos(math.Abs(w))
}
