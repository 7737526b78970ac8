package syscall

import (
	"github.com/sprout-os/sprout/internal/pstat"
	"github.com/sprout-os/sprout/internal/riscv"
)

// maxArgc bounds exec's argv, mirroring MAXARG.
const maxArgc = 32

// maxArgLen bounds each individual exec argument string.
const maxArgLen = 64

func sysFork(t *Table, a args) int64 { return int64(t.procs.Fork(a.p)) }

func sysExit(t *Table, a args) int64 {
	a.p.Exit(a.Int(0))
	return 0 // not reached
}

func sysWait(t *Table, a args) int64 {
	return int64(t.procs.Wait(a.p, a.Addr(0)))
}

func sysKill(t *Table, a args) int64 {
	return int64(t.procs.Kill(a.p, a.Int(0)))
}

func sysGetpid(t *Table, a args) int64 { return int64(a.p.Pid()) }

func sysSbrk(t *Table, a args) int64 {
	addr := a.p.Size()
	if a.p.Growproc(int(a.Int(0))) < 0 {
		return -1
	}
	return int64(addr)
}

func sysSleep(t *Table, a args) int64 {
	return int64(t.procs.SleepTicks(a.p, a.Int(0)))
}

func sysUptime(t *Table, a args) int64 { return int64(t.procs.Uptime(a.p)) }

func sysAlarm(t *Table, a args) int64 {
	a.p.SetAlarm(a.Int(0), uint64(a.Addr(1)))
	return 0
}

func sysSettickets(t *Table, a args) int64 { return int64(a.p.SetTickets(a.Int(0))) }

func sysGetpinfo(t *Table, a args) int64 {
	addr := a.Addr(0)
	var ps pstat.Pstat
	t.procs.Procinfo(&ps)
	if err := a.p.Pagetable().CopyToUser(addr, marshalPstat(&ps)); err != nil {
		return -1
	}
	return 0
}

// sysExec fetches the path and argv vector out of user memory and
// execs the named image (§4.7 "exec"). With no on-disk filesystem
// (§1 out of scope), the path is handed to Collaborators.LoadImage;
// a nil loader or a lookup miss both surface as the ordinary exec
// failure a missing path produces (§8).
func sysExec(t *Table, a args) int64 {
	path, err := a.Str(0, maxPathLen)
	if err != nil {
		return -1
	}

	argv, err := readArgv(a, a.Addr(1))
	if err != nil {
		return -1
	}

	if t.col.LoadImage == nil {
		return -1
	}
	image, err := t.col.LoadImage(path)
	if err != nil {
		return -1
	}

	return int64(t.procs.Exec(a.p, image, argv))
}

// readArgv walks the user-space array of char* at uargv, each entry a
// word-sized user address, zero-terminated, reading at most maxArgc
// strings of at most maxArgLen bytes each.
func readArgv(a args, uargv riscv.Va) ([]string, error) {
	var argv []string
	for i := 0; i < maxArgc; i++ {
		entryAddr := uargv + riscv.Va(i*8)
		entry, err := a.fetchAddr(entryAddr)
		if err != nil {
			return nil, err
		}
		if entry == 0 {
			return argv, nil
		}
		s, err := a.p.Pagetable().CopyInString(riscv.Va(entry), maxArgLen)
		if err != nil {
			return nil, err
		}
		argv = append(argv, s)
	}
	return nil, ErrBadAddr
}

// marshalPstat lays ps out the way CopyToUser expects: a flat byte
// slice matching the wire struct's field order (three NProc-length
// int32 arrays), since CopyToUser copies bytes, not Go values.
func marshalPstat(ps *pstat.Pstat) []byte {
	buf := make([]byte, 0, 3*pstat.NProc*4)
	buf = appendInt32Array(buf, ps.Pid[:])
	buf = appendInt32Array(buf, ps.Tickets[:])
	buf = appendInt32Array(buf, ps.Ticks[:])
	return buf
}

func appendInt32Array(buf []byte, vals []int32) []byte {
	for _, v := range vals {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return buf
}
