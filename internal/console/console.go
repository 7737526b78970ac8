// Package console implements the line-oriented input discipline that
// sits between the UART interrupt handler and user reads: a 1024-byte
// ring buffer, backspace-erases-in-place editing, \r→\n translation,
// and a Ctrl-P hook to dump the process table (§6).
package console

import (
	"errors"

	"github.com/sprout-os/sprout/internal/klock"
)

// ErrKilled is returned by Read when the calling process was killed
// while blocked waiting for input.
var ErrKilled = errors.New("console: read interrupted, process killed")

// BufSize is the input ring buffer size.
const BufSize = 1024

const (
	ctrlP = 'P' - '@'
	del   = 0x7f
)

// UART is the synchronous/asynchronous output surface this package
// needs from the driver: PutC queues a byte for interrupt-driven
// output, PutCSync polls the transmitter directly (used for echo and
// for anything printed before interrupts are enabled, same as the
// teacher's uartputc vs. uartputc_sync split).
type UART interface {
	PutC(b byte)
	PutCSync(b byte)
}

// Console is the kernel's console line discipline: one input ring
// buffer guarded by a spinlock, shared by the UART interrupt handler
// (producer) and Read (consumer).
type Console struct {
	guard *klock.Spinlock
	uart  UART

	// procDump is called on Ctrl-P. It is injected rather than an
	// import of internal/proc, to avoid a console<->proc dependency
	// cycle (proc's own diagnostics may want to print through this
	// same console).
	procDump func()

	buf                            [BufSize]byte
	readIndex, writeIndex, editIndex uint
}

// New creates a console line discipline over uart.
func New(uart UART) *Console {
	return &Console{guard: klock.NewSpinlock("console"), uart: uart}
}

// SetProcDump installs the Ctrl-P handler.
func (c *Console) SetProcDump(f func()) { c.procDump = f }

// HandleIRQ processes one input byte from the UART interrupt handler:
// Ctrl-P, backspace, or an ordinary character appended to the buffer
// and echoed back.
func (c *Console) HandleIRQ(h klock.Waiter, ch byte) {
	c.guard.Acquire(h)
	defer c.guard.Release(h)

	switch ch {
	case ctrlP:
		if c.procDump != nil {
			c.procDump()
		}
	case del:
		if c.editIndex != c.writeIndex {
			c.editIndex--
			c.eraseOne()
		}
	default:
		if ch == 0 || c.editIndex-c.readIndex >= BufSize {
			return
		}
		if ch == '\r' {
			ch = '\n'
		}
		c.uart.PutCSync(ch)
		c.buf[c.editIndex%BufSize] = ch
		c.editIndex++
		if ch == '\n' || c.editIndex-c.readIndex == BufSize {
			c.writeIndex = c.editIndex
			h.Wakeup(&c.readIndex)
		}
	}
}

func (c *Console) eraseOne() {
	c.uart.PutCSync('\b')
	c.uart.PutCSync(' ')
	c.uart.PutCSync('\b')
}

// Read copies up to len(dst) bytes into dst, blocking until at least
// one line's worth of input is available, and stopping early at the
// first newline. killed is polled while blocked so a killed process
// doesn't wait forever; copying the result into user memory is the
// caller's job (the syscall/file layer, via vmm), keeping this package
// free of a vmm dependency.
func (c *Console) Read(h klock.Waiter, dst []byte, killed func() bool) (int, error) {
	c.guard.Acquire(h)
	defer c.guard.Release(h)

	target := len(dst)
	n := len(dst)
	i := 0
	for n > 0 {
		for c.readIndex == c.writeIndex {
			if killed != nil && killed() {
				return 0, ErrKilled
			}
			h.Sleep(&c.readIndex, c.guard)
		}
		ch := c.buf[c.readIndex%BufSize]
		c.readIndex++
		dst[i] = ch
		i++
		n--
		if ch == '\n' {
			break
		}
	}
	return target - n, nil
}

// Write sends data to the UART for a user write(), one byte at a
// time. Unlike Read it needs no lock: output ordering across writers
// is not a correctness property the teacher's own console_write
// preserves either.
func (c *Console) Write(data []byte) int {
	for _, b := range data {
		c.uart.PutC(b)
	}
	return len(data)
}
