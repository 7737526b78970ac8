package syscall

// Syscall numbers, in the order syscall.c declares their sys_* externs
// and indexes its dispatch table.
const (
	SysFork = iota + 1
	SysExit
	SysWait
	SysPipe
	SysRead
	SysKill
	SysExec
	SysFstat
	SysChdir
	SysDup
	SysGetpid
	SysSbrk
	SysSleep
	SysUptime
	SysOpen
	SysWrite
	SysMknod
	SysUnlink
	SysLink
	SysMkdir
	SysClose
	SysReadcount
	SysAlarm
	SysSettickets
	SysGetpinfo
)

var names = map[int32]string{
	SysFork:       "fork",
	SysExit:       "exit",
	SysWait:       "wait",
	SysPipe:       "pipe",
	SysRead:       "read",
	SysKill:       "kill",
	SysExec:       "exec",
	SysFstat:      "fstat",
	SysChdir:      "chdir",
	SysDup:        "dup",
	SysGetpid:     "getpid",
	SysSbrk:       "sbrk",
	SysSleep:      "sleep",
	SysUptime:     "uptime",
	SysOpen:       "open",
	SysWrite:      "write",
	SysMknod:      "mknod",
	SysUnlink:     "unlink",
	SysLink:       "link",
	SysMkdir:      "mkdir",
	SysClose:      "close",
	SysReadcount:  "readcount",
	SysAlarm:      "alarm",
	SysSettickets: "settickets",
	SysGetpinfo:   "getpinfo",
}
