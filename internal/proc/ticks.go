package proc

import "github.com/sprout-os/sprout/internal/klock"

// Tick advances the tick counter and wakes everything sleeping on it,
// the clockintr half of the source's "acquire(&tickslock); ticks++;
// wakeup(&ticks); release(&tickslock)" — wired from a timer interrupt
// via trap.Devices.OnTick (§4.6).
func (t *Table) Tick(caller klock.HartInterrupts) {
	t.ticksLock.Acquire(caller)
	t.ticks++
	t.ticksLock.Release(caller)
	t.wakeup(caller, nil, &t.ticks)
}

// Uptime returns the number of timer ticks since boot (sys_uptime).
func (t *Table) Uptime(p *Proc) uint32 {
	t.ticksLock.Acquire(p.ctx)
	defer t.ticksLock.Release(p.ctx)
	return t.ticks
}

// SleepTicks blocks p until n ticks have elapsed or p is killed
// (sys_sleep): it loops checking the elapsed count against the tick
// count recorded on entry, sleeping on &t.ticks between wakeups exactly
// as the source does, rather than a single blocking sleep, since a
// spurious wakeup (another sleeper's tick) must re-check the count
// instead of returning early. Returns -1 if killed before n ticks
// elapse, 0 otherwise.
func (t *Table) SleepTicks(p *Proc, n int32) int32 {
	t.ticksLock.Acquire(p.ctx)
	start := t.ticks
	for t.ticks-start < uint32(n) {
		if p.Killed() {
			t.ticksLock.Release(p.ctx)
			return -1
		}
		p.ctx.Sleep(&t.ticks, t.ticksLock)
	}
	t.ticksLock.Release(p.ctx)
	return 0
}
