package syscall

import (
	"io"

	"github.com/sprout-os/sprout/internal/proc"
)

// Collaborators bundles exec's one external dependency: a way to turn
// a path string into a readable ELF image. There is no on-disk
// filesystem in this port (out of scope), so the default (nil) loader
// makes every exec fail exactly the way "exec a missing path" does in
// §8's edge cases; a host embedding this kernel with its own image
// source (an initramfs, say) supplies a real one.
type Collaborators struct {
	LoadImage func(path string) (io.ReaderAt, error)
	Log       func(format string, args ...any)

	// Trace turns on syscall.c's SYSCALL_TRACE logging: one Log line
	// per completed call naming it and its return value.
	Trace bool
}

// Table is the syscall dispatch table: it implements proc.Dispatcher,
// reading a7 out of the trap frame, looking up a handler by number,
// and writing the handler's return value back into a0 (spec.md's
// "syscall" control flow).
type Table struct {
	procs *proc.Table
	col   Collaborators
}

// New builds a dispatch table bound to procs, the process table every
// handler below ultimately calls back into.
func New(procs *proc.Table, col Collaborators) *Table {
	return &Table{procs: procs, col: col}
}

// Syscall reads the call number from a7, dispatches it, and stores the
// result in a0 — unknown numbers log and return -1 (syscall.c's own
// "unknown sys call" branch).
func (t *Table) Syscall(p *proc.Proc) {
	num := int32(p.Trapframe().A7)
	h, ok := handlers[num]
	if !ok {
		if t.col.Log != nil {
			t.col.Log("%d %s: unknown sys call %d\n", p.Pid(), p.Name(), num)
		}
		p.Trapframe().SetReturn(^uint64(0))
		return
	}
	ret := h(t, args{p: p})
	p.Trapframe().SetReturn(uint64(int64(ret)))
	if t.col.Trace && t.col.Log != nil {
		t.col.Log("%s -> %d\n", names[num], ret)
	}
}

type handlerFunc func(t *Table, a args) int64

var handlers = map[int32]handlerFunc{
	SysFork:       sysFork,
	SysExit:       sysExit,
	SysWait:       sysWait,
	SysPipe:       sysUnimplemented,
	SysRead:       sysUnimplemented,
	SysKill:       sysKill,
	SysExec:       sysExec,
	SysFstat:      sysUnimplemented,
	SysChdir:      sysUnimplemented,
	SysDup:        sysUnimplemented,
	SysGetpid:     sysGetpid,
	SysSbrk:       sysSbrk,
	SysSleep:      sysSleep,
	SysUptime:     sysUptime,
	SysOpen:       sysUnimplemented,
	SysWrite:      sysUnimplemented,
	SysMknod:      sysUnimplemented,
	SysUnlink:     sysUnimplemented,
	SysLink:       sysUnimplemented,
	SysMkdir:      sysUnimplemented,
	SysClose:      sysUnimplemented,
	SysReadcount:  sysUnimplemented,
	SysAlarm:      sysAlarm,
	SysSettickets: sysSettickets,
	SysGetpinfo:   sysGetpinfo,
}

// sysUnimplemented serves every syscall number whose handler would
// need the on-disk filesystem and log (§1 out of scope): pipe, file
// I/O, directory entries. Always fails exactly the way a real failure
// of that call would look to a user program, rather than panicking.
func sysUnimplemented(t *Table, a args) int64 { return -1 }
