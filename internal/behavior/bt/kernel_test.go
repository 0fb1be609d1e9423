package bt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func statusNode(s Status, ticked *int) Func {
	return Func(func(bb any) Status {
		if ticked != nil {
			*ticked++
		}
		return s
	})
}

// P9: Sequence of N children all Success returns Success.
func TestSequence_AllSuccess(t *testing.T) {
	seq := NewSequence(statusNode(Success, nil), statusNode(Success, nil), statusNode(Success, nil))
	assert.Equal(t, Success, seq.Tick(nil))
}

// P9: Sequence short-circuits on Failure; remaining siblings not ticked.
func TestSequence_ShortCircuitsOnFailure(t *testing.T) {
	var thirdTicked int
	seq := NewSequence(statusNode(Success, nil), statusNode(Failure, nil), statusNode(Success, &thirdTicked))
	assert.Equal(t, Failure, seq.Tick(nil))
	assert.Equal(t, 0, thirdTicked)
}

// P9: Select of N children all Failure returns Failure.
func TestSelect_AllFailure(t *testing.T) {
	sel := NewSelect(statusNode(Failure, nil), statusNode(Failure, nil), statusNode(Failure, nil))
	assert.Equal(t, Failure, sel.Tick(nil))
}

// P9: Select short-circuits on the first Success.
func TestSelect_ShortCircuitsOnSuccess(t *testing.T) {
	var thirdTicked int
	sel := NewSelect(statusNode(Failure, nil), statusNode(Success, nil), statusNode(Success, &thirdTicked))
	assert.Equal(t, Success, sel.Tick(nil))
	assert.Equal(t, 0, thirdTicked)
}

func TestSequence_RunningPausesMidway(t *testing.T) {
	calls := 0
	blocker := Func(func(bb any) Status {
		calls++
		if calls < 2 {
			return Running
		}
		return Success
	})
	var afterTicked int
	seq := NewSequence(statusNode(Success, nil), blocker, statusNode(Success, &afterTicked))

	assert.Equal(t, Running, seq.Tick(nil))
	assert.Equal(t, 0, afterTicked)
	assert.Equal(t, Success, seq.Tick(nil))
	assert.Equal(t, 1, afterTicked)
}

func TestInvert_FlipsSuccessAndFailure(t *testing.T) {
	assert.Equal(t, Failure, NewInvert(statusNode(Success, nil)).Tick(nil))
	assert.Equal(t, Success, NewInvert(statusNode(Failure, nil)).Tick(nil))
	assert.Equal(t, Running, NewInvert(statusNode(Running, nil)).Tick(nil))
}

func TestTryCatch_RunsCatchOnFailure(t *testing.T) {
	tc := NewTryCatch(statusNode(Failure, nil), statusNode(Success, nil))
	assert.Equal(t, Success, tc.Tick(nil))
}

func TestTryCatch_ForwardsTrySuccess(t *testing.T) {
	var catchTicked int
	tc := NewTryCatch(statusNode(Success, nil), statusNode(Success, &catchTicked))
	assert.Equal(t, Success, tc.Tick(nil))
	assert.Equal(t, 0, catchTicked)
}

func TestParallelAny_FirstNonRunningWins(t *testing.T) {
	p := NewParallelAny(statusNode(Running, nil), statusNode(Failure, nil), statusNode(Success, nil))
	assert.Equal(t, Failure, p.Tick(nil))
}

func TestWhileLoop_EndsWhenCondFails(t *testing.T) {
	calls := 0
	cond := Func(func(bb any) Status {
		calls++
		if calls > 2 {
			return Failure
		}
		return Success
	})
	body := statusNode(Success, nil)
	loop := NewWhileLoop(cond, body)

	assert.Equal(t, Running, loop.Tick(nil))
	assert.Equal(t, Running, loop.Tick(nil))
	assert.Equal(t, Success, loop.Tick(nil))
}
