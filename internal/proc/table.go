package proc

import (
	"fmt"
	"sync"

	"github.com/sprout-os/sprout/internal/klock"
	"github.com/sprout-os/sprout/internal/pmm"
	"github.com/sprout-os/sprout/internal/pstat"
	"github.com/sprout-os/sprout/internal/riscv"
	"github.com/sprout-os/sprout/internal/vmm"
)

// Table is the fixed-size process table plus the locks and counters
// that order access to it (§3 Data Model, §4.7). Its size is pinned to
// pstat.NProc so the process table and the getpinfo wire struct never
// drift apart.
type Table struct {
	alloc *pmm.Allocator
	mem   vmm.Mem

	procs [pstat.NProc]*Proc

	pidLock sync.Mutex
	nextPid int32

	// waitLock orders parent/child traversal (fork's parent
	// assignment, exit's reparenting, wait's scan). It is always
	// acquired before a process's own lock, never while holding one (§5).
	waitLock *klock.Spinlock

	trampolinePA riscv.Pa
	initProc     *Proc
	dispatcher   Dispatcher

	// ticksLock and ticks are the source's tickslock/ticks globals
	// (declared in trap.c, used by sys_sleep/sys_uptime in
	// sysproc.c): a tick count advanced once per timer interrupt, with
	// sleepers parked on &t.ticks woken on every advance.
	ticksLock *klock.Spinlock
	ticks     uint32
}

// NewTable builds an empty process table, all slots Unused, plus the
// one shared trampoline frame every user page table maps at the same
// virtual address (§4.5).
func NewTable(alloc *pmm.Allocator, mem vmm.Mem) (*Table, error) {
	t := &Table{alloc: alloc, mem: mem, waitLock: klock.NewSpinlock("wait_lock"), ticksLock: klock.NewSpinlock("tickslock")}

	pa := alloc.Alloc()
	if pa == 0 {
		return nil, ErrNoMem
	}
	t.trampolinePA = pa

	for i := range t.procs {
		p := &Proc{
			lock:   klock.NewSpinlock(fmt.Sprintf("proc-%d", i)),
			table:  t,
			slot:   i,
			resume: make(chan *Hart),
			parked: make(chan struct{}),
		}
		p.ctx = &procCtx{p: p}
		t.procs[i] = p
	}
	return t, nil
}

// SetDispatcher installs the syscall dispatch table a Workload issues
// calls through (internal/syscall implements Dispatcher).
func (t *Table) SetDispatcher(d Dispatcher) { t.dispatcher = d }

// InitProc returns the first user process created by UserInit, the
// reparenting target for every orphaned process.
func (t *Table) InitProc() *Proc { return t.initProc }

func (t *Table) allocPid() int32 {
	t.pidLock.Lock()
	defer t.pidLock.Unlock()
	t.nextPid++
	return t.nextPid
}

// Procs returns every process-table slot, for diagnostics and tests.
// Unused slots are included; callers check State().
func (t *Table) Procs() []*Proc {
	out := make([]*Proc, len(t.procs))
	copy(out, t.procs[:])
	return out
}
