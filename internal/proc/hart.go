package proc

// intrController is the hardware interrupt-enable primitive Hart
// builds push_off/pop_off nesting on top of. Production (riscv64)
// wires the real CSR-backed implementation in intr_riscv64.go; tests
// and anything hosted use SoftIntr.
type intrController interface {
	IntrOn()
	IntrOff()
	IntrGet() bool
}

// randSource is the one method this package needs from a lottery draw
// source — satisfied by *rand.Rand from math/rand/v2 (SPEC_FULL.md §5:
// injectable for deterministic tests).
type randSource interface {
	IntN(n int) int
}

// Hart is the per-CPU state the original reaches through mycpu()/tp: a
// push_off nesting counter and saved interrupt-enable flag, the
// process currently executing here, and this hart's lottery draw
// source (SPEC_FULL.md §3 — an explicit handle standing in for the tp
// register and for swtch's caller-side half).
type Hart struct {
	id   int
	intr intrController
	rnd  randSource

	noff        int
	intenaSaved bool

	proc *Proc
}

// NewHart creates a hart with the given interrupt controller and
// lottery draw source.
func NewHart(id int, intr intrController, rnd randSource) *Hart {
	return &Hart{id: id, intr: intr, rnd: rnd}
}

// ID returns the hart's identity, satisfying klock.HartInterrupts.
func (h *Hart) ID() int { return h.id }

// PushOff disables interrupts and increments the nesting depth,
// recording the prior interrupt-enable state on the outermost push.
func (h *Hart) PushOff() {
	enabled := h.intr.IntrGet()
	h.intr.IntrOff()
	if h.noff == 0 {
		h.intenaSaved = enabled
	}
	h.noff++
}

// PopOff decrements the nesting depth, re-enabling interrupts only on
// the outermost pop and only if they were enabled before the first
// push. Panics on underflow or if interrupts are already enabled (both
// invariant violations, §4.3).
func (h *Hart) PopOff() {
	if h.intr.IntrGet() {
		panic("proc: pop_off called with interrupts already enabled")
	}
	if h.noff < 1 {
		panic("proc: pop_off without a matching push_off")
	}
	h.noff--
	if h.noff == 0 && h.intenaSaved {
		h.intr.IntrOn()
	}
}

// IntrOn unconditionally enables interrupts on this hart, the
// scheduler's "so a completely idle hart can still take timer IRQs"
// call at the top of each loop iteration (§4.7).
func (h *Hart) IntrOn() { h.intr.IntrOn() }

// Proc returns the process currently executing on this hart, or nil.
func (h *Hart) Proc() *Proc { return h.proc }

// SoftIntr is a software interrupt-enable flag standing in for the
// hart's real CSR on hosts with no such register — every test in this
// package, and any build that isn't riscv64.
type SoftIntr struct{ enabled bool }

// NewSoftIntr returns a SoftIntr with interrupts initially enabled.
func NewSoftIntr() *SoftIntr { return &SoftIntr{enabled: true} }

func (s *SoftIntr) IntrOn()       { s.enabled = true }
func (s *SoftIntr) IntrOff()      { s.enabled = false }
func (s *SoftIntr) IntrGet() bool { return s.enabled }
