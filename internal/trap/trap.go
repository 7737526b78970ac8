// Package trap implements the trap dispatch and trampoline bookkeeping
// contract: usertrap/usertrapret/kerneltrap and devintr (§4.5, §4.6).
// There is no assembly trampoline or real ecall/sret transition behind
// this — internal/proc.Workload stands in for the user-mode side
// (SPEC_FULL.md §3) — so every entry point here takes scause as an
// explicit argument instead of reading a CSR, which is what makes the
// dispatch logic itself testable on a host with no RISC-V hart.
package trap

import (
	"fmt"

	"github.com/sprout-os/sprout/internal/plic"
	"github.com/sprout-os/sprout/internal/proc"
	"github.com/sprout-os/sprout/internal/riscv"
)

// Devices bundles the device-interrupt collaborators Devintr dispatches
// to, injected rather than imported directly since UART/VIRTIO driver
// internals are out of this port's scope (§1).
type Devices struct {
	Plic plic.Controller

	OnUART func()
	OnDisk func()

	// OnTick fires once per supervisor-software-interrupt tick; wired
	// to hart 0 only in boot order (advancing the global tick counter
	// and waking &ticks is internal/boot's job, not this package's).
	OnTick func()

	// Log reports an unrecognized IRQ or scause; nil discards it.
	Log func(format string, args ...any)
}

// Devintr classifies scause and dispatches a device interrupt,
// returning 1 for a recognized external interrupt, 2 for the
// supervisor-software timer interrupt, 0 for anything else (§4.6).
func Devintr(d Devices, scause uint64) int {
	switch {
	case scause&riscv.ScauseInterruptBit != 0 && scause&^riscv.ScauseInterruptBit == riscv.ScauseExceptionCode9:
		var irq int
		if d.Plic != nil {
			irq = d.Plic.Claim()
		}
		switch irq {
		case plic.UART0IRQ:
			if d.OnUART != nil {
				d.OnUART()
			}
		case plic.VIRTIO0IRQ:
			if d.OnDisk != nil {
				d.OnDisk()
			}
		case 0:
		default:
			if d.Log != nil {
				d.Log("trap: unrecognized irq %d", irq)
			}
		}
		if d.Plic != nil && irq != 0 {
			d.Plic.Complete(irq)
		}
		return 1

	case scause == riscv.ScauseSupervisorSoft:
		if d.OnTick != nil {
			d.OnTick()
		}
		return 2

	default:
		return 0
	}
}

// Usertrap runs the usertrap contract for p against an explicit scause
// (§4.5): a syscall advances epc by 4 and re-enables interrupts before
// dispatch; a device interrupt is handled and a timer tick marks p for
// a yield; anything else kills p. p.Killed() is then checked once more
// regardless of which branch ran, and a timer tick yields — both
// mirroring the source's own post-dispatch steps 4 and 5 exactly.
func Usertrap(table *proc.Table, p *proc.Proc, hart *proc.Hart, d Devices, scause uint64) {
	timer := false

	switch {
	case scause == riscv.ScauseEnvCallFromU:
		if p.Killed() {
			p.Exit(-1)
		}
		p.Trapframe().Epc += 4
		hart.IntrOn()
		p.Ecall()

	default:
		switch Devintr(d, scause) {
		case 2:
			timer = true
			p.IncTicks()
		case 0:
			if d.Log != nil {
				d.Log("trap: pid %d: unexpected scause 0x%x", p.Pid(), scause)
			}
			p.SetKilled()
		}
	}

	if p.Killed() {
		p.Exit(-1)
	}
	if timer {
		table.Yield(p)
	}
	Usertrapret(p, hart)
}

// Usertrapret updates the trap frame's kernel-return fields the real
// uservec reloads on the next trap into this process (§4.5). The hart
// id is the only one of the four this package can determine on its
// own; kernelSatp and the kernel trap-vector address come from the
// caller, so UsertrapretWithKernel is the entry point that fills in
// all four — this one is a
// convenience for callers (tests, mainly) that only care about the
// hart id bookkeeping.
func Usertrapret(p *proc.Proc, hart *proc.Hart) {
	p.Trapframe().KernelHartid = uint64(hart.ID())
}

// UsertrapretWithKernel is Usertrapret plus the two boot-owned fields:
// the kernel page table to restore on the next trap in, and the
// address of the kernel trap handler uservec jumps to.
func UsertrapretWithKernel(p *proc.Proc, hart *proc.Hart, kernelSatp, kernelTrapVector uint64) {
	tf := p.Trapframe()
	tf.KernelSatp = kernelSatp
	tf.KernelSP = uint64(riscv.Kstack(p.Slot())) + riscv.PGSIZE
	tf.KernelTrap = kernelTrapVector
	tf.KernelHartid = uint64(hart.ID())
}

// Kerneltrap runs the kerneltrap contract for a trap taken while
// already in supervisor mode (§4.5): dispatch a device interrupt, and
// yield if it was a timer tick and some process is currently Running
// on this hart. An unrecognized scause here is fatal, matching the
// source's own "kerneltrap" panic — there is no user process to blame
// a fault on.
func Kerneltrap(table *proc.Table, d Devices, scause uint64, running *proc.Proc) {
	switch Devintr(d, scause) {
	case 0:
		panic(fmt.Sprintf("trap: kerneltrap: unrecognized scause 0x%x", scause))
	case 2:
		if running != nil {
			table.Yield(running)
		}
	}
}
