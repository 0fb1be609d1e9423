package behavior

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunabot/internal/behavior/bt"
	"lunabot/internal/planner"
	"lunabot/internal/spatial"
)

func cellAt(x, y int) planner.Cell { return planner.Cell{X: x, Y: y} }

func newTestBlackboard(now time.Time) *Blackboard {
	return &Blackboard{
		Isometry: spatial.Identity(),
		Now:      now,
	}
}

// P10 / Scenario 5: holding pose constant for MAX_STUCK enters
// BackingAway and emits reverse steering (left=-1, right=0).
func TestFollowPath_StuckTriggersBackingAway(t *testing.T) {
	start := time.Now()
	bb := newTestBlackboard(start)
	bb.Path = []Waypoint{{Pos: spatial.Vec2{X: 0, Y: 5}, Kind: MoveTo}}

	node := bt.NewAssertCancelSafe(func(raw any) bt.Status { return followPathInner(raw.(*Blackboard)) })

	// First tick establishes LatestTransform.
	status := node.Tick(bb)
	require.Equal(t, bt.Running, status)
	require.Nil(t, bb.BackingAwayFrom)

	// Advance simulated time past MAX_STUCK_DURATION without moving.
	bb.Now = start.Add(2 * time.Second)
	status = node.Tick(bb)
	require.Equal(t, bt.Running, status)
	require.NotNil(t, bb.BackingAwayFrom)

	actions := bb.DrainActions()
	require.NotEmpty(t, actions)
}

func TestFollowPath_BackingAwayEmitsReverseSteering(t *testing.T) {
	bb := newTestBlackboard(time.Now())
	anchor := spatial.Vec2{X: 0, Y: 0}
	bb.BackingAwayFrom = &anchor
	bb.Isometry = spatial.Identity()

	status := followPathInner(bb)
	require.Equal(t, bt.Running, status)

	actions := bb.DrainActions()
	require.Len(t, actions, 1)
	assert.Equal(t, ActionSetSteering, actions[0].Kind)
	assert.Equal(t, -1.0, actions[0].Steering.Left)
	assert.Equal(t, 0.0, actions[0].Steering.Right)
}

func TestFollowPath_EmptyPathEmitsZeroSteeringAndRuns(t *testing.T) {
	bb := newTestBlackboard(time.Now())
	status := followPathInner(bb)
	assert.Equal(t, bt.Running, status)
	actions := bb.DrainActions()
	require.Len(t, actions, 1)
	assert.Equal(t, Steering{}, actions[0].Steering)
}

func TestFollowPath_CompletingFinalWaypointLeadingToGoalSucceeds(t *testing.T) {
	bb := newTestBlackboard(time.Now())
	goal := cellAt(3, 3)
	bb.TargetCell = &goal
	bb.Path = []Waypoint{{Pos: spatial.Vec2{X: 0, Y: 0}, Cell: goal, Kind: MoveTo}}
	bb.Isometry.Translation.X = 0
	bb.Isometry.Translation.Z = 0 // at the waypoint already

	status := followPathInner(bb)
	assert.Equal(t, bt.Success, status)
	assert.Empty(t, bb.Path)
}

func TestFollowPath_CompletingPathNotLeadingToGoalFails(t *testing.T) {
	bb := newTestBlackboard(time.Now())
	goal := cellAt(9, 9)
	other := cellAt(3, 3)
	bb.TargetCell = &goal
	bb.Path = []Waypoint{{Pos: spatial.Vec2{X: 0, Y: 0}, Cell: other, Kind: MoveTo}}

	status := followPathInner(bb)
	assert.Equal(t, bt.Failure, status)
}
