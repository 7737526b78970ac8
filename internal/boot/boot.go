// Package boot implements the leader/follower startup sequence: one
// hart initializes every subsystem and creates the first user process,
// the rest spin until it signals readiness, then all harts enter the
// scheduler (spec.md's boot-orchestration control flow).
package boot

import (
	"sync/atomic"

	"github.com/sprout-os/sprout/internal/plic"
	"github.com/sprout-os/sprout/internal/pmm"
	"github.com/sprout-os/sprout/internal/proc"
	"github.com/sprout-os/sprout/internal/syscall"
	"github.com/sprout-os/sprout/internal/trap"
	"github.com/sprout-os/sprout/internal/vmm"
)

// Config bundles every collaborator the leader wires together.
// UART/VirtIO/PLIC drivers are out of this port's scope (§1), so their
// real implementations — and whatever MMIO detail backs Plic/OnUART/
// OnDisk on real hardware — are the embedder's to supply; nil values
// degrade gracefully (an unclaimed IRQ, a logged-but-ignored device
// event) rather than panicking, which is what lets this package be
// exercised on a host with none of those devices present at all.
type Config struct {
	Alloc *pmm.Allocator
	Mem   vmm.Mem

	// Initcode is the first process's user-memory image, copied in
	// verbatim by UserInit — this port's stand-in for assembling and
	// linking a second toy initcode.S (§4 supplemented features).
	Initcode []byte
	Workload proc.Workload

	Syscalls syscall.Collaborators
	Plic     plic.Controller
	OnUART   func()
	OnDisk   func()
	Log      func(format string, args ...any)
}

// Kernel is the assembled, not-yet-running core: a process table with
// its dispatcher installed, ready for one hart to call RunLeader and
// the rest to call RunFollower.
type Kernel struct {
	Table *proc.Table

	cfg     Config
	started atomic.Bool
}

// New builds the process table and wires the syscall dispatcher into
// it, the leader's "initialize every subsystem" step up to but not
// including creating the first process (which needs a *proc.Hart, not
// available until a caller is ready to run on one).
func New(cfg Config) (*Kernel, error) {
	table, err := proc.NewTable(cfg.Alloc, cfg.Mem)
	if err != nil {
		return nil, err
	}
	table.SetDispatcher(syscall.New(table, cfg.Syscalls))
	return &Kernel{Table: table, cfg: cfg}, nil
}

// Devices builds the trap.Devices this hart should dispatch device
// interrupts through — a fresh value per hart since OnTick closes over
// which hart observed the timer interrupt (§4.6). Only hart 0's value
// carries an OnTick, so the global tick counter advances once per tick
// rather than once per hart.
func (k *Kernel) Devices(hart *proc.Hart) trap.Devices {
	d := trap.Devices{
		Plic:   k.cfg.Plic,
		OnUART: k.cfg.OnUART,
		OnDisk: k.cfg.OnDisk,
		Log:    k.cfg.Log,
	}
	if hart.ID() == 0 {
		d.OnTick = func() { k.Table.Tick(hart) }
	}
	return d
}

// RunLeader creates the first user process on hart, publishes
// readiness to every follower with a release store, and enters the
// scheduler. It returns only if creating the first process fails; once
// the scheduler is entered it never returns (spec.md: "all writes by hart 0 during
// boot are visible to followers once started == 1 is observed —
// release/acquire pair"; atomic.Bool's Store/Load already carry that
// ordering in Go's memory model, so this is the one place the pattern
// needs spelling out explicitly rather than relying on a spinlock).
func (k *Kernel) RunLeader(hart *proc.Hart) error {
	if _, err := k.Table.UserInit(hart, k.cfg.Initcode, k.cfg.Workload); err != nil {
		return err
	}
	k.started.Store(true)
	k.Table.Scheduler(hart)
	panic("boot: scheduler returned")
}

// RunFollower spins until RunLeader has published readiness, then
// enters the scheduler on hart. Callers are expected to have already
// enabled this hart's paging and trap vector — boot orchestration ends
// where the per-hart CSR setup internal/riscv leaves to build-tagged
// production code begins.
func (k *Kernel) RunFollower(hart *proc.Hart) {
	for !k.started.Load() {
	}
	k.Table.Scheduler(hart)
	panic("boot: scheduler returned")
}
