package proc

// Workload stands in for a process's compiled user text: the
// functional effect of issuing system calls without a real ecall/sret
// privilege transition (SPEC_FULL.md §3). It runs once the scheduler
// first switches into this process — the landing spot forkret returns
// through in the source — and is expected to call p.Exit itself, which
// never returns; a Workload that returns without exiting is treated as
// an implicit exit(0).
type Workload func(p *Proc)

// Dispatcher is how a Workload issues a system call: read the number
// and arguments out of p's trap frame, perform the call, and write the
// result back into a0 — exactly what syscall() does in the source
// (§4.8). internal/syscall implements this; this package only needs
// the interface, so that syscall may depend on proc without proc ever
// depending on syscall.
type Dispatcher interface {
	Syscall(p *Proc)
}

// Ecall dispatches one system call on p's behalf, the stand-in for the
// trap a real ecall instruction would raise.
func (p *Proc) Ecall() {
	if p.table.dispatcher != nil {
		p.table.dispatcher.Syscall(p)
	}
}

// Exit is a convenience wrapper so a Workload can call p.Exit(status)
// without reaching into the table.
func (p *Proc) Exit(status int32) { p.table.Exit(p, status) }

func (t *Table) ensureStarted(p *Proc) {
	if p.started {
		return
	}
	p.started = true
	go p.run()
}

// run is a process's goroutine body: the first receive on resume is
// the scheduler's first switch into this process (forkret's landing
// spot); it releases the slot lock allocproc left held, runs the
// workload, and implicitly exits if the workload ever returns.
func (p *Proc) run() {
	h := <-p.resume
	p.curHart = h
	p.lock.Release(h)

	if p.workload != nil {
		p.workload(p)
	}
	p.Exit(0)
}

// Scheduler is a hart's non-returning scheduling loop (§4.7). Each
// iteration enables interrupts (so an otherwise-idle hart still takes
// timer IRQs), draws a lottery winner among Runnable processes, and
// switches into it.
func (t *Table) Scheduler(h *Hart) {
	h.proc = nil
	for {
		h.IntrOn()

		p := t.pickRunnable(h.rnd)
		if p == nil {
			// Open Questions: total_tickets == 0 would be a modulo
			// by zero in the source; spin with interrupts on until a
			// Runnable process exists instead of faulting.
			continue
		}

		p.lock.Acquire(h)
		if p.state == Runnable {
			p.state = Running
			h.proc = p
			p.curHart = h
			t.ensureStarted(p)

			p.resume <- h
			<-p.parked

			h.proc = nil
		}
		p.lock.Release(h)
	}
}

// pickRunnable draws a lottery winner among Runnable processes,
// weighted by ticket count, using rnd as the draw source (§4.7,
// SPEC_FULL.md §5). Returns nil if no process is Runnable.
func (t *Table) pickRunnable(rnd randSource) *Proc {
	var runnable []*Proc
	var total int32
	for _, p := range t.procs {
		if p.state == Runnable {
			runnable = append(runnable, p)
			total += p.tickets
		}
	}
	if total == 0 {
		return nil
	}

	winner := int32(rnd.IntN(int(total)))
	var sum int32
	for _, p := range runnable {
		sum += p.tickets
		if sum > winner {
			return p
		}
	}
	return nil
}

// sched context-switches away from p, handing control back to whatever
// hart is driving its Scheduler loop, and blocks until that (or
// another) hart resumes it. Callers must hold p.lock, hold no other
// lock, and have interrupts disabled — the same invariants the
// source's sched() asserts (§4.7).
func (p *Proc) sched() {
	h := p.curHart
	if !p.lock.Holding(h) {
		panic("proc: sched called without holding p.lock")
	}
	if h.noff != 1 {
		panic("proc: sched called while holding more than one lock")
	}
	if p.state == Running {
		panic("proc: sched called on a Running process")
	}
	if h.intr.IntrGet() {
		panic("proc: sched called with interrupts enabled")
	}

	intena := h.intenaSaved
	p.parked <- struct{}{}
	newHart := <-p.resume
	p.curHart = newHart
	newHart.intenaSaved = intena
}

// Yield gives up the hart voluntarily, marking p Runnable again before
// scheduling away.
func (t *Table) Yield(p *Proc) {
	p.lock.Acquire(p.ctx)
	if p.state == Running {
		p.state = Runnable
	}
	p.sched()
	p.lock.Release(p.ctx)
}
