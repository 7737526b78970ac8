package proc

import (
	"encoding/binary"

	"github.com/sprout-os/sprout/internal/riscv"
)

// Fork duplicates parent into a new process: a real copy of its user
// memory (not copy-on-write — explicitly out of this spec's non-goals),
// its trap frame with a0 zeroed so the child sees a 0 return value,
// duplicated open files, and its name, ticket count, and workload
// (§4.7 "fork"). Returns the child's pid, or -1 on failure.
func (t *Table) Fork(parent *Proc) int32 {
	child, err := t.AllocProc(parent.ctx)
	if err != nil {
		return -1
	}

	if err := parent.pagetable.UvmCopy(child.pagetable, parent.sz); err != nil {
		t.freeProcLocked(child)
		child.lock.Release(parent.ctx)
		return -1
	}
	child.sz = parent.sz

	*child.trapframe = *parent.trapframe
	child.trapframe.A0 = 0

	for i, f := range parent.ofile {
		if f != nil {
			child.ofile[i] = f.Dup()
		}
	}
	child.cwd = parent.cwd
	child.name = parent.name
	child.tickets = parent.tickets
	// The child runs the same compiled program until it execs, so it
	// shares the parent's Workload — a modeling simplification over a
	// literal register/stack copy, recorded in DESIGN.md.
	child.workload = parent.workload

	pid := child.pid
	child.lock.Release(parent.ctx)

	t.waitLock.Acquire(parent.ctx)
	child.parent = parent
	t.waitLock.Release(parent.ctx)

	child.lock.Acquire(parent.ctx)
	child.state = Runnable
	child.lock.Release(parent.ctx)

	return pid
}

// reparent hands every child of p to the init process and wakes it,
// so it can reap them. Callers must hold t.waitLock.
func (t *Table) reparent(caller *Proc, p *Proc) {
	reparented := false
	for _, c := range t.procs {
		if c.parent == p {
			c.parent = t.initProc
			reparented = true
		}
	}
	if reparented && t.initProc != nil {
		t.wakeup(caller.ctx, caller, t.initProc)
	}
}

// Exit closes p's files, reparents its children to init, wakes its
// parent, and becomes a zombie for its parent to reap via Wait
// (§4.7 "exit"). It never returns: the process goroutine parks forever
// immediately afterward, since a Zombie process is never rescheduled.
// Exiting the init process is a fatal invariant violation.
func (t *Table) Exit(p *Proc, status int32) {
	if p == t.initProc {
		panic("proc: init process exiting")
	}

	for i, f := range p.ofile {
		if f != nil {
			f.Close()
			p.ofile[i] = nil
		}
	}
	p.cwd = nil

	t.waitLock.Acquire(p.ctx)
	t.reparent(p, p)

	p.lock.Acquire(p.ctx)
	parent := p.parent
	p.lock.Release(p.ctx)

	if parent != nil {
		t.wakeup(p.ctx, p, parent)
	}

	p.lock.Acquire(p.ctx)
	p.xstate = status
	p.state = Zombie

	t.waitLock.Release(p.ctx)

	p.sched()
	panic("proc: zombie exit")
}

// Wait blocks p until one of its children exits, then reaps it: frees
// its slot and, if addr is non-zero, copies its exit status to user
// memory at addr (§4.7 "wait"). Returns the reaped child's pid, or -1
// if p has no children or has been killed.
func (t *Table) Wait(p *Proc, addr riscv.Va) int32 {
	t.waitLock.Acquire(p.ctx)
	defer t.waitLock.Release(p.ctx)

	for {
		havekids := false
		for _, c := range t.procs {
			if c.parent != p {
				continue
			}
			havekids = true

			c.lock.Acquire(p.ctx)
			if c.state == Zombie {
				pid := c.pid
				if addr != 0 {
					var buf [4]byte
					binary.LittleEndian.PutUint32(buf[:], uint32(c.xstate))
					if err := p.pagetable.CopyToUser(addr, buf[:]); err != nil {
						c.lock.Release(p.ctx)
						return -1
					}
				}
				t.freeProcLocked(c)
				c.lock.Release(p.ctx)
				return pid
			}
			c.lock.Release(p.ctx)
		}

		if !havekids || p.killed {
			return -1
		}

		p.ctx.Sleep(p, t.waitLock)
	}
}

// Kill marks the process with the given pid killed and, if it is
// Sleeping, wakes it to Runnable so it observes the kill at its next
// trap boundary (§4.7 "kill"). Never preempts a Running target.
// Returns 0, or -1 if no process has that pid.
func (t *Table) Kill(caller *Proc, pid int32) int32 {
	for _, p := range t.procs {
		p.lock.Acquire(caller.ctx)
		if p.pid == pid {
			p.killed = true
			if p.state == Sleeping {
				p.state = Runnable
			}
			p.lock.Release(caller.ctx)
			return 0
		}
		p.lock.Release(caller.ctx)
	}
	return -1
}

// SetKilled marks p killed.
func (p *Proc) SetKilled() {
	p.lock.Acquire(p.ctx)
	p.killed = true
	p.lock.Release(p.ctx)
}

// Killed reports whether p has been killed.
func (p *Proc) Killed() bool {
	p.lock.Acquire(p.ctx)
	k := p.killed
	p.lock.Release(p.ctx)
	return k
}

// SetTickets sets p's lottery ticket count, rejecting n < 1. This is
// the settickets syscall's semantics; the Open Questions note its
// source-level signature is spurious and the argint-fetched value is
// the one that's honored regardless (§9).
func (p *Proc) SetTickets(n int32) int32 {
	if n < 1 {
		return -1
	}
	p.lock.Acquire(p.ctx)
	p.tickets = n
	p.lock.Release(p.ctx)
	return 0
}
