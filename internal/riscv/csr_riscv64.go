//go:build riscv64

package riscv

// The functions below read or write a single control-and-status
// register. Each is a single csrr/csrw instruction with no other side
// effects, so none of them can be expressed in portable Go — they are
// implemented in csr_riscv64.s, following the same declare-in-Go,
// define-in-assembly split gopher-os uses for its per-arch cpu package
// and tamago uses for flush_tlb/set_ttbr0 in arm64/mmu.go.

//go:noescape
func Rsstatus() uint64

//go:noescape
func Wsstatus(x uint64)

//go:noescape
func Rsip() uint64

//go:noescape
func Wsip(x uint64)

//go:noescape
func Rsie() uint64

//go:noescape
func Wsie(x uint64)

//go:noescape
func Wsepc(x uint64)

//go:noescape
func Rsepc() uint64

//go:noescape
func Rscause() uint64

//go:noescape
func Rstval() uint64

//go:noescape
func Wstvec(x uint64)

//go:noescape
func Rstvec() uint64

//go:noescape
func Wsatp(x uint64)

//go:noescape
func Rsatp() uint64

//go:noescape
func SfenceVMA()

//go:noescape
func IntrOn()

//go:noescape
func IntrOff()

//go:noescape
func IntrGet() bool

// There is deliberately no Rtp/Wtp pair here: the original kernel reads
// the hart id out of the tp register to index cpus[]. This port threads
// the hart id explicitly as a *proc.Hart handle instead (SPEC_FULL.md
// §3), so nothing needs to read tp at all.
