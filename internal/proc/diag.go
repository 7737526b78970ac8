package proc

import "github.com/sprout-os/sprout/internal/pstat"

// Procdump prints one line per non-Unused slot: pid, state, name. It
// deliberately takes no lock, mirroring the source's own procdump —
// "no lock to avoid wedging a stuck machine further" — and is wired to
// the console's Ctrl-P handler (§6).
func (t *Table) Procdump(printf func(format string, args ...any)) {
	for _, p := range t.procs {
		if p.state == Unused {
			continue
		}
		printf("%d %s %s\n", p.pid, p.state, p.name)
	}
}

// Procinfo fills ps with a snapshot of every slot's pid, ticket count,
// and tick count, indexed by table slot (p - &proc[0]) — not the
// reversed &proc[NPROC] - p the source writes. That reversed index is
// a named bug in the Open Questions, fixed here rather than replicated.
func (t *Table) Procinfo(ps *pstat.Pstat) {
	for i, p := range t.procs {
		ps.Pid[i] = p.pid
		ps.Tickets[i] = p.tickets
		ps.Ticks[i] = p.ticks
	}
}
