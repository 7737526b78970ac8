package console

import (
	"fmt"

	"github.com/sprout-os/sprout/internal/klock"
)

// Printf serializes kernel log output through a spinlock-guarded
// writer. Locking is disabled until Init runs (mirroring early boot,
// before any hart identity exists to acquire a lock with); Panic
// always bypasses the lock so a panic message gets out even if
// another hart panicked mid-print and never released it.
type Printf struct {
	guard   *klock.Spinlock
	uart    UART
	locking bool
}

// NewPrintf creates a Printf over uart, with locking disabled until
// Init is called.
func NewPrintf(uart UART) *Printf {
	return &Printf{guard: klock.NewSpinlock("printf"), uart: uart}
}

// Init enables locked output, once boot has a hart identity to pass
// to Acquire/Release.
func (p *Printf) Init() { p.locking = true }

// Printf formats and writes a message, holding the printf lock for the
// duration if locking is enabled.
func (p *Printf) Printf(h klock.HartInterrupts, format string, args ...any) {
	if p.locking {
		p.guard.Acquire(h)
		defer p.guard.Release(h)
	}
	p.write(fmt.Sprintf(format, args...))
}

func (p *Printf) write(s string) {
	for i := 0; i < len(s); i++ {
		p.uart.PutCSync(s[i])
	}
}

// Panic prints msg and hangs the calling hart forever. It
// unconditionally disables locking first, so the message reaches the
// UART even if the printf lock is (or becomes) stuck held.
func (p *Printf) Panic(msg string) {
	p.locking = false
	p.write("panic: " + msg + "\n")
	select {}
}
