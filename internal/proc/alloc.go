package proc

import (
	"unsafe"

	"github.com/sprout-os/sprout/internal/klock"
	"github.com/sprout-os/sprout/internal/riscv"
	"github.com/sprout-os/sprout/internal/trapframe"
	"github.com/sprout-os/sprout/internal/vmm"
)

// AllocProc finds an Unused slot, assigns it a fresh pid, and gives it
// a trap-frame page and a fresh user page table with the trampoline
// and trap-frame mapped. It returns with the slot's lock held, exactly
// as the source's allocproc does, so the caller can finish
// initializing the slot before anything else can observe it
// (§4.7 "Allocation").
func (t *Table) AllocProc(h klock.HartInterrupts) (*Proc, error) {
	for _, p := range t.procs {
		p.lock.Acquire(h)
		if p.state != Unused {
			p.lock.Release(h)
			continue
		}

		p.pid = t.allocPid()
		p.state = Used

		pa := t.alloc.Alloc()
		if pa == 0 {
			t.freeProcLocked(p)
			p.lock.Release(h)
			return nil, ErrNoMem
		}
		b := t.mem.Bytes(pa)
		for i := range b {
			b[i] = 0
		}
		p.trapframePA = pa
		p.trapframe = (*trapframe.TrapFrame)(unsafe.Pointer(&b[0]))

		pt, err := t.newPagetable(p)
		if err != nil {
			t.freeProcLocked(p)
			p.lock.Release(h)
			return nil, err
		}
		p.pagetable = pt

		p.sz = 0
		p.tickets = 1
		p.ticks = 0
		p.killed = false
		p.xstate = 0
		p.channel = nil
		p.name = ""
		p.parent = nil
		p.started = false
		p.workload = nil

		return p, nil
	}
	return nil, ErrNoProc
}

// newPagetable builds a fresh, otherwise-empty user page table with
// the shared trampoline frame and this process's own trap-frame frame
// mapped, the two mappings every user address space carries regardless
// of what user memory it holds (§3 Data Model, "Address space").
func (t *Table) newPagetable(p *Proc) (*vmm.PageTable, error) {
	pt, err := vmm.New(t.alloc, t.mem)
	if err != nil {
		return nil, err
	}
	if err := pt.MapPages(riscv.Trampoline, t.trampolinePA, riscv.PGSIZE, riscv.PteR|riscv.PteX); err != nil {
		pt.UvmFree(0)
		return nil, err
	}
	if err := pt.MapPages(riscv.Trapframe, p.trapframePA, riscv.PGSIZE, riscv.PteR|riscv.PteW); err != nil {
		pt.Unmap(riscv.Trampoline, 1, false)
		pt.UvmFree(0)
		return nil, err
	}
	return pt, nil
}

// freeProcPagetable unmaps the trampoline and trap-frame pages (never
// freeing the shared trampoline frame, and never freeing the trap
// frame here — its own frame has a separate lifetime, see
// freeProcLocked), then frees the rest of the address space.
func (t *Table) freeProcPagetable(pt *vmm.PageTable, sz uintptr) {
	pt.Unmap(riscv.Trampoline, 1, false)
	pt.Unmap(riscv.Trapframe, 1, false)
	pt.UvmFree(sz)
}

// freeProcLocked resets a slot to Unused, freeing its trap frame and
// address space. Callers must hold p.lock.
func (t *Table) freeProcLocked(p *Proc) {
	if p.trapframePA != 0 {
		t.alloc.Free(p.trapframePA)
		p.trapframePA = 0
		p.trapframe = nil
	}
	if p.pagetable != nil {
		t.freeProcPagetable(p.pagetable, p.sz)
		p.pagetable = nil
	}
	p.sz = 0
	p.pid = 0
	p.parent = nil
	p.name = ""
	p.channel = nil
	p.killed = false
	p.xstate = 0
	p.tickets = 0
	p.ticks = 0
	p.state = Unused
	p.workload = nil
	p.started = false
	p.cwd = nil
	p.ofile = [NOFILE]File{}
}

// UserInit creates the very first process: one page of user memory
// holding initcode verbatim, sp at the top of that page, pc at 0, and
// workload installed as the code that "runs" once the scheduler first
// switches in (§4 supplemented features: the exact initcode boot path,
// adapted to take an embedded byte slice plus a Workload rather than
// compiling a second toy assembly program). It never runs fsinit,
// since the filesystem is out of this port's scope.
func (t *Table) UserInit(h klock.HartInterrupts, initcode []byte, workload Workload) (*Proc, error) {
	p, err := t.AllocProc(h)
	if err != nil {
		return nil, err
	}

	sz, err := p.pagetable.UvmAlloc(0, uintptr(len(initcode)), riscv.PteW|riscv.PteX)
	if err != nil {
		t.freeProcLocked(p)
		p.lock.Release(h)
		return nil, err
	}
	if err := p.pagetable.CopyToUser(0, initcode); err != nil {
		t.freeProcLocked(p)
		p.lock.Release(h)
		return nil, err
	}
	sz = riscv.PGRoundUp(sz)
	p.sz = sz

	p.trapframe.Epc = 0
	p.trapframe.Sp = uint64(sz)

	p.name = "initcode"
	p.workload = workload

	t.initProc = p
	p.state = Runnable
	p.lock.Release(h)
	return p, nil
}

// Growproc grows (n > 0) or shrinks (n < 0) p's user memory by n bytes.
// Growth saturates to -1 on allocation failure; shrinking always
// succeeds (§4 supplemented features: growproc/sbrk semantics).
func (p *Proc) Growproc(n int) int {
	sz := p.sz
	switch {
	case n > 0:
		newsz, err := p.pagetable.UvmAlloc(sz, sz+uintptr(n), riscv.PteW)
		if err != nil {
			return -1
		}
		sz = newsz
	case n < 0:
		sz = p.pagetable.UvmDealloc(sz, uintptr(int64(sz)+int64(n)))
	}
	p.sz = sz
	return 0
}
