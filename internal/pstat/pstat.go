// Package pstat is the wire struct returned by the getpinfo syscall: a
// snapshot of every process-table slot's pid, lottery ticket count,
// and tick count (§6).
package pstat

// NProc is the fixed size of the process table (and so of Pstat's
// arrays). xv7-riscv defaults to 64; nothing in the spec makes the
// exact number load-bearing beyond it being fixed.
const NProc = 64

// Pstat mirrors struct pstat from getpinfo: parallel arrays indexed by
// process-table slot, not by pid.
type Pstat struct {
	Pid     [NProc]int32
	Tickets [NProc]int32
	Ticks   [NProc]int32
}
