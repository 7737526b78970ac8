package proc

import "github.com/sprout-os/sprout/internal/klock"

// sleep atomically releases guard and blocks p on chanID until a
// matching wakeup, preventing the lost-wakeup race by holding p.lock
// across the release of guard and the state transition to Sleeping
// (§9 Design Notes, "Sleep/wakeup race" — preserved exactly).
func (p *Proc) sleep(chanID any, guard *klock.Spinlock) {
	mustReacquireOwnLock := guard != p.lock
	if mustReacquireOwnLock {
		p.lock.Acquire(p.ctx)
	}
	guard.Release(p.ctx)

	p.channel = chanID
	p.state = Sleeping

	p.sched()

	// By the time sched() returns, some Scheduler loop has already
	// transitioned p back to Running (the only state it resumes), so
	// only the channel needs clearing here.
	p.channel = nil

	if mustReacquireOwnLock {
		p.lock.Release(p.ctx)
	}
	guard.Acquire(p.ctx)
}

// wakeup transitions every Sleeping process (other than actor) waiting
// on chanID to Runnable, taking each slot's own lock before inspecting
// its state (§4.7 "Sleep/wakeup").
func (t *Table) wakeup(caller klock.HartInterrupts, actor *Proc, chanID any) {
	for _, p := range t.procs {
		if p == actor {
			continue
		}
		p.lock.Acquire(caller)
		if p.state == Sleeping && p.channel == chanID {
			p.state = Runnable
		}
		p.lock.Release(caller)
	}
}
