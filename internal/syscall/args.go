// Package syscall implements the argument-fetch helpers and dispatch
// table the trap path hands every ecall off to (spec.md: "On entry,
// syscall reads the number from a7..."). It satisfies proc.Dispatcher
// so internal/proc never imports it.
package syscall

import (
	"encoding/binary"
	"errors"

	"github.com/sprout-os/sprout/internal/proc"
	"github.com/sprout-os/sprout/internal/riscv"
)

// maxPathLen bounds argstr's copy, mirroring MAXPATH.
const maxPathLen = 128

// ErrBadAddr is fetchaddr's/argstr's rejection of an out-of-range or
// overflowing user pointer (spec.md: "reject if addr >= process size,
// addr+len wraps, or any page is unmapped").
var ErrBadAddr = errors.New("syscall: bad user address")

// args wraps the process whose trap frame a handler reads arguments
// out of — the receiver argint/argaddr/argstr close over implicitly in
// the source via myproc().
type args struct{ p *proc.Proc }

// raw returns the nth argument register, a0..a5, panicking outside
// that range exactly as the source's argraw does.
func (a args) raw(n int) uint64 { return a.p.Trapframe().Arg(n) }

// Int fetches the nth argument as a 32-bit signed int (argint).
func (a args) Int(n int) int32 { return int32(a.raw(n)) }

// Addr fetches the nth argument as a raw user virtual address
// (argaddr) — no validation here; validation happens where the
// address is actually dereferenced, matching the source's split
// between argaddr and fetchaddr/copyin_str.
func (a args) Addr(n int) riscv.Va { return riscv.Va(a.raw(n)) }

// fetchAddr validates and reads one word-sized value out of user
// memory at addr (fetchaddr): addr must be within the process's size,
// addr+8 must not wrap or exceed it, and every page touched must be
// mapped.
func (a args) fetchAddr(addr riscv.Va) (uint64, error) {
	const wordSize = 8
	sz := a.p.Size()
	if uintptr(addr) >= sz || uintptr(addr)+wordSize > sz {
		return 0, ErrBadAddr
	}
	var buf [wordSize]byte
	if err := a.p.Pagetable().CopyFromUser(buf[:], addr); err != nil {
		return 0, ErrBadAddr
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Str fetches the nth argument as a user address, then copies the
// NUL-terminated string found there, bounded by max bytes and by the
// end of the process's memory (argstr, which calls argaddr then
// fetchstr). An address at or past the process's size is rejected.
func (a args) Str(n int, max int) (string, error) {
	addr := a.Addr(n)
	sz := a.p.Size()
	if uintptr(addr) >= sz {
		return "", ErrBadAddr
	}
	if rem := sz - uintptr(addr); rem < uintptr(max) {
		max = int(rem)
	}
	s, err := a.p.Pagetable().CopyInString(addr, max)
	if err != nil {
		return "", ErrBadAddr
	}
	return s, nil
}
