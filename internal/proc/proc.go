// Package proc implements the process table, lottery scheduler,
// fork/exec/wait/exit lifecycle, and sleep/wakeup (§4.7). It is the
// largest subsystem in the core and the one with the least portable
// mapping onto a managed runtime: there is no tp register to steal for
// a hart id and no swtch to hand-assemble, so both are modeled
// explicitly (SPEC_FULL.md §3) rather than simulated byte-for-byte.
package proc

import (
	"errors"

	"github.com/sprout-os/sprout/internal/klock"
	"github.com/sprout-os/sprout/internal/riscv"
	"github.com/sprout-os/sprout/internal/trapframe"
	"github.com/sprout-os/sprout/internal/vmm"
)

var (
	// ErrNoProc means every process-table slot is in use.
	ErrNoProc = errors.New("proc: no free process slots")
	// ErrNoMem means the physical frame allocator is exhausted.
	ErrNoMem = errors.New("proc: out of physical memory")
)

// NOFILE is the size of a process's open-file table.
const NOFILE = 16

// File is the open-file-table entry type. This package only needs Dup
// (for fork) and Close (for exit); the concrete file, pipe, and inode
// implementations that satisfy it are out of scope (§1: "the on-disk
// filesystem and log").
type File interface {
	Dup() File
	Close()
}

// State is a process-table slot's lifecycle state (§3 Data Model).
type State int

const (
	Unused State = iota
	Used
	Sleeping
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case Used:
		return "used"
	case Sleeping:
		return "sleeping"
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Zombie:
		return "zombie"
	default:
		return "???"
	}
}

// Proc is one process-table slot. Fields are split the way §5 requires:
// state/pid/killed/xstate/channel are guarded by lock; parent is
// guarded by the table's waitLock; everything else is owned by the
// process itself while Running and stable otherwise.
type Proc struct {
	lock *klock.Spinlock
	ctx  *procCtx
	table *Table
	slot  int

	state   State
	pid     int32
	parent  *Proc
	killed  bool
	xstate  int32
	channel any

	tickets int32
	ticks   int32

	sz          uintptr
	pagetable   *vmm.PageTable
	trapframe   *trapframe.TrapFrame
	trapframePA riscv.Pa
	name        string
	ofile       [NOFILE]File
	cwd         any

	curHart *Hart
	resume  chan *Hart
	parked  chan struct{}
	started bool
	workload Workload

	alarmTicks   int32
	alarmHandler uint64
}

// Pid returns the process's pid.
func (p *Proc) Pid() int32 { return p.pid }

// Slot returns the process's fixed index into the process table, the
// same index Kstack(i) uses to place its kernel stack and Procinfo
// uses to place its pstat entry.
func (p *Proc) Slot() int { return p.slot }

// Name returns the process's name (≤16 bytes in the source; unbounded
// here, nothing downstream depends on the truncation).
func (p *Proc) Name() string { return p.name }

// State returns the process's current state.
func (p *Proc) State() State { return p.state }

// Size returns the process's user memory size.
func (p *Proc) Size() uintptr { return p.sz }

// Pagetable returns the process's user page table.
func (p *Proc) Pagetable() *vmm.PageTable { return p.pagetable }

// Trapframe returns the process's trap frame.
func (p *Proc) Trapframe() *trapframe.TrapFrame { return p.trapframe }

// SetOFile installs fd i's open-file entry (nil closes it without
// calling Close — the caller's job if it wants that side effect).
func (p *Proc) SetOFile(i int, f File) { p.ofile[i] = f }

// OFile returns fd i's open-file entry, or nil.
func (p *Proc) OFile(i int) File { return p.ofile[i] }

// SetWorkload installs the function that runs once the scheduler first
// switches into p, overriding whatever Workload it inherited from
// UserInit or Fork. Callers outside this package use this instead of
// reaching into the unexported field directly — a fresh child process
// distinguishing itself from its parent (exec, or a test driving a
// child through a distinct code path) is the only legitimate reason to
// change it after creation.
func (p *Proc) SetWorkload(w Workload) { p.workload = w }

// SetAlarm records the alarm syscall's interval and handler address:
// after ticks ticks of this process's own CPU time, handler should
// run (sys_alarm). Invoking the handler itself — saving and later
// restoring the trap frame around the call, which needs a matching
// sigreturn-style syscall the source this was ported from did not
// define either — is not wired; this stores the contract's two
// arguments without driving it from Usertrap.
func (p *Proc) SetAlarm(ticks int32, handler uint64) {
	p.alarmTicks = ticks
	p.alarmHandler = handler
}

// AlarmTicks returns the interval set by SetAlarm.
func (p *Proc) AlarmTicks() int32 { return p.alarmTicks }

// AlarmHandler returns the handler address set by SetAlarm.
func (p *Proc) AlarmHandler() uint64 { return p.alarmHandler }

// IncTicks adds one to the CPU ticks this process has consumed, the
// per-slot counter getpinfo reports (§6) — advanced once per timer
// interrupt taken while the process was the one running (§4.6).
func (p *Proc) IncTicks() { p.ticks++ }

// procCtx is the klock.Waiter a process's own kernel-mode code uses to
// lock/sleep/wake. It forwards every call to whichever Hart currently
// owns the process, since that can change across a sleep — an idle
// hart may pick up a process a different hart put to sleep
// (SPEC_FULL.md §3 treats this as ordinary hart migration, not an
// exceptional case).
type procCtx struct{ p *Proc }

func (c *procCtx) ID() int    { return c.p.curHart.ID() }
func (c *procCtx) PushOff()   { c.p.curHart.PushOff() }
func (c *procCtx) PopOff()    { c.p.curHart.PopOff() }

func (c *procCtx) Sleep(chanID any, guard *klock.Spinlock) { c.p.sleep(chanID, guard) }
func (c *procCtx) Wakeup(chanID any)                       { c.p.table.wakeup(c, c.p, chanID) }
