// Command qemurun launches a QEMU `virt`-machine instance running
// cmd/kernel and attaches the host terminal to its serial console
// (spec.md §0: "a hypervisor-provided machine environment (QEMU
// `virt` platform)"), the host-side half of this port cmd/kernel's
// own goroutine-hart simulation can't provide on its own.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// RunManifest configures one QEMU invocation.
type RunManifest struct {
	MemoryMB int    `yaml:"memory_mb"`
	Harts    int    `yaml:"harts"`
	Kernel   string `yaml:"kernel"`
	DiskPath string `yaml:"disk"`
}

func main() {
	if err := run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "qemurun: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	manifestPath := flag.String("manifest", "", "path to the run manifest (YAML)")
	flag.Parse()

	m := RunManifest{MemoryMB: 128, Harts: 3}
	if *manifestPath != "" {
		raw, err := os.ReadFile(*manifestPath)
		if err != nil {
			return fmt.Errorf("read manifest %q: %w", *manifestPath, err)
		}
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("parse manifest %q: %w", *manifestPath, err)
		}
	}
	if m.Kernel == "" {
		return fmt.Errorf("manifest must name a kernel image")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return runQEMU(ctx, m)
}

func runQEMU(ctx context.Context, m RunManifest) error {
	args := []string{
		"-machine", "virt",
		"-bios", "none",
		"-nographic",
		"-smp", fmt.Sprintf("%d", m.Harts),
		"-m", fmt.Sprintf("%dM", m.MemoryMB),
		"-kernel", m.Kernel,
		"-serial", "stdio",
	}
	if m.DiskPath != "" {
		args = append(args, "-drive", fmt.Sprintf("file=%s,if=none,format=raw,id=disk0", m.DiskPath),
			"-device", "virtio-blk-device,drive=disk0")
	}

	slog.Info("starting QEMU", "harts", m.Harts, "memory_mb", m.MemoryMB, "kernel", m.Kernel)

	cmd := exec.CommandContext(ctx, "qemu-system-riscv64", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("enable raw mode: %w", err)
		}
		defer term.Restore(int(os.Stdin.Fd()), oldState)
	}
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run qemu-system-riscv64: %w", err)
	}
	return nil
}
