//go:build riscv64

package proc

import "github.com/sprout-os/sprout/internal/riscv"

// riscvIntr adapts the real sstatus-CSR-backed primitives to
// intrController, for use outside of tests.
type riscvIntr struct{}

func (riscvIntr) IntrOn()       { riscv.IntrOn() }
func (riscvIntr) IntrOff()      { riscv.IntrOff() }
func (riscvIntr) IntrGet() bool { return riscv.IntrGet() }

// NewHartRiscv64 creates a Hart backed by the real hardware interrupt
// CSRs, for cmd/kernel to create one per physical hart.
func NewHartRiscv64(id int, rnd randSource) *Hart {
	return NewHart(id, riscvIntr{}, rnd)
}
