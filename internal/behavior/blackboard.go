// Package behavior implements the blackboard-driven autonomy core (C6):
// the path-follow state machine, stuck detection, arc control, and the
// top-level autonomy loop. Grounded on
// original_source/lunabotics/lunabot-ai/src/autonomy/follow_path.rs.
package behavior

import (
	"time"

	"gonum.org/v1/gonum/num/quat"

	"lunabot/internal/planner"
	"lunabot/internal/spatial"
)

// WaypointKind discriminates how a waypoint is approached and how its
// completion predicate is evaluated (§3).
type WaypointKind int

const (
	MoveTo WaypointKind = iota
	MoveToBackwards
	FaceTowards
)

// Waypoint is one element of a Path: a world-space target plus how to
// approach it.
type Waypoint struct {
	Pos  spatial.Vec2
	Cell planner.Cell
	Kind WaypointKind
}

// CompletionDist is the Euclidean distance threshold for MoveTo /
// MoveToBackwards completion (§3).
const CompletionDist = 0.2

// CompletionAngleDeg is the angular-alignment threshold in degrees for
// FaceTowards completion (§3).
const CompletionAngleDeg = 5.0

// IsFinished reports whether pos/heading satisfy this waypoint's
// completion predicate.
func (w Waypoint) IsFinished(pos spatial.Vec2, heading spatial.Vec2) bool {
	switch w.Kind {
	case FaceTowards:
		toTarget := w.Pos.Sub(pos)
		if toTarget.Len() == 0 {
			return true
		}
		angleDeg := heading.Angle(toTarget) * 180 / 3.14159265358979
		return angleDeg < CompletionAngleDeg
	default:
		return w.Pos.Sub(pos).Len() < CompletionDist
	}
}

// AutonomyState is the coarse robot mode, always reflected to the base
// station (GLOSSARY: "Stage").
type AutonomyState int

const (
	SoftStop AutonomyState = iota
	TeleOp
	Autonomy
)

// Steering is a differential-drive command.
type Steering struct {
	Left, Right float64
	Weight      float64
}

// DefaultSteeringWeight matches the reference's Steering::DEFAULT_WEIGHT.
const DefaultSteeringWeight = 1.0

// ActionKind discriminates pending blackboard actions.
type ActionKind int

const (
	ActionSetSteering ActionKind = iota
	ActionAvoidCell
	ActionClearPointsToAvoid
)

// Action is one entry of the blackboard's pending action queue.
type Action struct {
	Kind     ActionKind
	Steering Steering
	Cell     planner.Cell
}

// PollWhenKind discriminates the poll-when directive.
type PollWhenKind int

const (
	PollWhenImmediate PollWhenKind = iota
	PollWhenInstant
)

// PollWhen tells the scheduler when this behavior next wants to run.
type PollWhen struct {
	Kind PollWhenKind
	At   time.Time
}

// LatestTransform anchors stuck detection: the pose observed the last time
// it moved or rotated enough to matter, plus when.
type LatestTransform struct {
	Pos      spatial.Vec2
	Rotation quat.Number
	At       time.Time
	Valid    bool
}

// Blackboard is the mutable shared state consumed and mutated by
// behavior-tree nodes on each tick (§3). A single instance lives for the
// lifetime of the autonomy process.
type Blackboard struct {
	Isometry spatial.Isometry

	Path       []Waypoint
	TargetCell *planner.Cell

	Autonomy AutonomyState

	LatestTransform LatestTransform
	BackingAwayFrom *spatial.Vec2

	LunabaseDisconnected bool

	Actions  []Action
	PollWhen PollWhen

	Now time.Time
}

// NewBlackboard constructs a Blackboard with Isometry set to the identity
// transform rather than its zero value (whose Rotation is the all-zero,
// non-unit quaternion quat.Number{}) — the same "a fault resets to
// identity" invariant §3 requires of the published robot pose.
func NewBlackboard(autonomy AutonomyState) *Blackboard {
	return &Blackboard{Isometry: spatial.Identity(), Autonomy: autonomy}
}

// EnqueueAction appends an action to the pending queue, consumed by the
// transport/actuator layer after each tick.
func (b *Blackboard) EnqueueAction(a Action) {
	b.Actions = append(b.Actions, a)
}

// DrainActions returns and clears the pending action queue.
func (b *Blackboard) DrainActions() []Action {
	out := b.Actions
	b.Actions = nil
	return out
}

// ClearLatestTransform invalidates the stuck-detection anchor, used when a
// path segment completes so the gap between path-follows is not
// interpreted as being stuck (follow_path.rs).
func (b *Blackboard) ClearLatestTransform() {
	b.LatestTransform = LatestTransform{}
}

// Pos2 projects the isometry's translation onto the ground plane (x,z in
// the reference's world frame becomes x,y here).
func (b *Blackboard) Pos2() spatial.Vec2 {
	return spatial.Vec2{X: b.Isometry.Translation.X, Y: b.Isometry.Translation.Z}
}
