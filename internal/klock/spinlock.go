// Package klock implements the kernel's own locking primitives: a
// non-sleeping spinlock that disables local interrupts while held, and
// a sleeping lock built on top of it plus the scheduler's sleep/wakeup
// hooks (§4.3). Both are leaf primitives with respect to the rest of
// the kernel — everything else (the buffer cache, the process table)
// is built on these, not the other way around — so neither type here
// imports the process package; callers satisfy two small interfaces
// instead.
package klock

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// HartInterrupts is the per-hart state a Spinlock needs to implement
// the push_off/pop_off interrupt-nesting discipline: which hart is
// asking, and a way to disable/re-enable its interrupts. *proc.Hart
// implements this.
type HartInterrupts interface {
	ID() int
	PushOff()
	PopOff()
}

// Spinlock is a non-sleeping mutual-exclusion lock. Acquire disables
// local interrupts before spinning, and panics on recursive acquire by
// the same hart (§3 Data Model: "recursive acquire by the same CPU is
// a panic").
type Spinlock struct {
	locked atomic.Bool
	owner  atomic.Int64 // hart ID of the current holder, -1 if unlocked
	name   string
}

// NewSpinlock returns an unlocked spinlock. name is used only in panic
// messages, mirroring xv6's initlock(name).
func NewSpinlock(name string) *Spinlock {
	l := &Spinlock{name: name}
	l.owner.Store(-1)
	return l
}

// Acquire disables interrupts on h's hart, then spins until the lock is
// free. It panics if h already holds the lock.
func (l *Spinlock) Acquire(h HartInterrupts) {
	h.PushOff()
	if l.owner.Load() == int64(h.ID()) && l.locked.Load() {
		panic(fmt.Sprintf("spinlock %q: recursive acquire by hart %d", l.name, h.ID()))
	}
	for !l.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	l.owner.Store(int64(h.ID()))
}

// Release hands the lock back and re-enables interrupts if this was
// the outermost push_off on h.
func (l *Spinlock) Release(h HartInterrupts) {
	if !l.Holding(h) {
		panic(fmt.Sprintf("spinlock %q: release by non-holder hart %d", l.name, h.ID()))
	}
	l.owner.Store(-1)
	l.locked.Store(false)
	h.PopOff()
}

// Holding reports whether h currently holds the lock.
func (l *Spinlock) Holding(h HartInterrupts) bool {
	return l.locked.Load() && l.owner.Load() == int64(h.ID())
}
