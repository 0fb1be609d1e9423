// Package bt is a minimal, dependency-free behavior-tree composition
// kernel (C9): every node implements Tick, returning a tri-state Status.
// Grounded on original_source/misc/luna-bt's Behaviour enum, adapted from
// its binary Result<(),()> status to the Running/Success/Failure surface
// this system needs, with composite/decorator naming following ares-bt as
// used by the reference follow_path.rs.
package bt

// Status is the tri-state result of ticking a node.
type Status int

const (
	Running Status = iota
	Success
	Failure
)

// Node is the behavior-tree node contract. Cancel is the cooperative
// cancellation hook: nodes that suspend (e.g. Wait) must reset any
// internal timer so a subsequent Tick starts fresh.
type Node interface {
	Tick(bb any) Status
	Cancel()
}

// Func adapts a plain function into a Node with a no-op Cancel, for leaf
// actions that never suspend.
type Func func(bb any) Status

func (f Func) Tick(bb any) Status { return f(bb) }
func (Func) Cancel()              {}

// Sequence runs children in order, short-circuiting on the first Failure.
// All children returning Success yields Success (P9).
type Sequence struct {
	children []Node
	current  int
}

func NewSequence(children ...Node) *Sequence { return &Sequence{children: children} }

func (s *Sequence) Tick(bb any) Status {
	for s.current < len(s.children) {
		status := s.children[s.current].Tick(bb)
		switch status {
		case Running:
			return Running
		case Failure:
			s.current = 0
			return Failure
		}
		s.current++
	}
	s.current = 0
	return Success
}

func (s *Sequence) Cancel() {
	if s.current < len(s.children) {
		s.children[s.current].Cancel()
	}
	s.current = 0
}

// Select runs children in order, short-circuiting on the first Success.
// All children returning Failure yields Failure (P9).
type Select struct {
	children []Node
	current  int
}

func NewSelect(children ...Node) *Select { return &Select{children: children} }

func (s *Select) Tick(bb any) Status {
	for s.current < len(s.children) {
		status := s.children[s.current].Tick(bb)
		switch status {
		case Running:
			return Running
		case Success:
			s.current = 0
			return Success
		}
		s.current++
	}
	s.current = 0
	return Failure
}

func (s *Select) Cancel() {
	if s.current < len(s.children) {
		s.children[s.current].Cancel()
	}
	s.current = 0
}

// ParallelAny ticks its children in order each call and terminates with the
// first child's result that is not Running; children after that one are
// not ticked on that call.
type ParallelAny struct {
	children []Node
}

func NewParallelAny(children ...Node) *ParallelAny { return &ParallelAny{children: children} }

func (p *ParallelAny) Tick(bb any) Status {
	for _, c := range p.children {
		if status := c.Tick(bb); status != Running {
			return status
		}
	}
	return Running
}

func (p *ParallelAny) Cancel() {
	for _, c := range p.children {
		c.Cancel()
	}
}

// WhileLoop re-enters body while cond returns Success.
type WhileLoop struct {
	cond, body Node
}

func NewWhileLoop(cond, body Node) *WhileLoop { return &WhileLoop{cond: cond, body: body} }

func (w *WhileLoop) Tick(bb any) Status {
	switch w.cond.Tick(bb) {
	case Running:
		return Running
	case Failure:
		return Success
	}
	w.body.Tick(bb)
	return Running // body re-enters next tick regardless of its own outcome
}

func (w *WhileLoop) Cancel() {
	w.cond.Cancel()
	w.body.Cancel()
}

// TryCatch runs try; on Failure it runs catch and forwards catch's status.
// Success and Running from try are forwarded unchanged.
type TryCatch struct {
	try, catch Node
	inCatch    bool
}

func NewTryCatch(try, catch Node) *TryCatch { return &TryCatch{try: try, catch: catch} }

func (t *TryCatch) Tick(bb any) Status {
	if t.inCatch {
		status := t.catch.Tick(bb)
		if status != Running {
			t.inCatch = false
		}
		return status
	}
	status := t.try.Tick(bb)
	if status == Failure {
		t.inCatch = true
		return t.Tick(bb)
	}
	return status
}

func (t *TryCatch) Cancel() {
	if t.inCatch {
		t.catch.Cancel()
	} else {
		t.try.Cancel()
	}
	t.inCatch = false
}

// Invert flips Success and Failure; Running passes through unchanged.
type Invert struct{ child Node }

func NewInvert(child Node) *Invert { return &Invert{child: child} }

func (i *Invert) Tick(bb any) Status {
	switch i.child.Tick(bb) {
	case Success:
		return Failure
	case Failure:
		return Success
	default:
		return Running
	}
}

func (i *Invert) Cancel() { i.child.Cancel() }

// AssertCancelSafe wraps a plain function node, documenting (per the
// reference's CancelSafe marker trait) that it may be cancelled at any
// point without leaving the blackboard inconsistent. Go has no trait
// bound to enforce this statically, so the wrapper is a naming device.
type AssertCancelSafe struct {
	fn func(bb any) Status
}

func NewAssertCancelSafe(fn func(bb any) Status) *AssertCancelSafe {
	return &AssertCancelSafe{fn: fn}
}

func (a *AssertCancelSafe) Tick(bb any) Status { return a.fn(bb) }
func (a *AssertCancelSafe) Cancel()            {}
