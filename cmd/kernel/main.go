//go:build riscv64

// Command kernel is sprout's entry point: hart 0 runs boot.RunLeader,
// every other hart runs boot.RunFollower (spec.md §4.9's control flow).
//
// A handful of riscv64 build-tagged files (internal/pmm, internal/vmm)
// address physical memory through the identity direct map rather than
// a byte-slice test arena, which is the real constraint this file is
// built under the riscv64 tag for. What it is not is a freestanding
// image: internal/proc's harts are goroutines, and the ordinary Go
// runtime this binary links against needs an OS underneath it
// (scheduler, signals, memory management) that a bare-metal boot
// doesn't provide. Getting from here to a bootable kernel.elf needs
// the kind of patched runtime the teacher (biscuit) built its own
// toolchain for — out of reach here (SPEC_FULL.md §3). This file wires
// the pieces the way that entry point would, and is the thing to run
// under an OS-level riscv64 target (or emulated user-mode) to drive
// the scheduler core end to end.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/sprout-os/sprout/internal/boot"
	"github.com/sprout-os/sprout/internal/pmm"
	"github.com/sprout-os/sprout/internal/proc"
	"github.com/sprout-os/sprout/internal/riscv"
	"github.com/sprout-os/sprout/internal/vmm"
)

// Standard QEMU virt-machine layout xv6/xv7 kernels boot under.
// original_source's memlayout.h wasn't part of the retrieved pack
// (_INDEX.md doesn't list it); these are the well-known values the
// kept sources (riscv.h, main.c) assume.
const (
	ncpu     = 8
	kernbase = riscv.Pa(0x80000000)
	physTop  = kernbase + 128*1024*1024
)

func main() {
	harts := flag.Int("harts", ncpu, "number of harts to simulate")
	initPath := flag.String("initcode", "", "path to the first process's memory image")
	flag.Parse()

	initcode := []byte{0}
	if *initPath != "" {
		b, err := os.ReadFile(*initPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kernel: read initcode: %v\n", err)
			os.Exit(1)
		}
		initcode = b
	}

	alloc := pmm.New(kernbase, physTop)

	var k *boot.Kernel
	cfg := boot.Config{
		Alloc:    alloc,
		Mem:      vmm.DirectMap{},
		Initcode: initcode,
		Log:      func(format string, args ...any) { fmt.Fprintf(os.Stderr, format, args...) },
	}
	cfg.Workload = func(p *proc.Proc) {
		for {
			k.Table.Yield(p)
		}
	}

	var err error
	k, err = boot.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: %v\n", err)
		os.Exit(1)
	}

	for id := 1; id < *harts; id++ {
		hart := proc.NewHartRiscv64(id, rand.New(rand.NewPCG(uint64(id), uint64(id))))
		go k.RunFollower(hart)
	}

	leader := proc.NewHartRiscv64(0, rand.New(rand.NewPCG(0, 0)))
	k.RunLeader(leader)
}
