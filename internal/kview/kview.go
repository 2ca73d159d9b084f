// Package kview reads the kernel-exposed, process-table-like views a
// detection pass is built from: process status, open file descriptors,
// wait channels, and file locks. It is the lowest layer of the pipeline
// (internal/kview -> internal/snapshot -> internal/depgraph -> internal/rag
// -> internal/cycle -> internal/classify) and the only layer that touches
// the filesystem.
//
// The Linux implementation (procfs_linux.go) parses /proc; every other
// platform falls back to a degraded gopsutil-backed reader
// (procfs_other.go) that cannot see locks, pipes, or wait channels but can
// still enumerate processes and status, grounded on the teacher's
// Platform/OSCommand pattern of holding a small amount of state behind an
// interface rather than branching on runtime.GOOS at every call site.
package kview

import "github.com/lazytrace/deadlockd/internal/kerr"

// LockKind distinguishes the two lock families spec.md §4.1 names.
type LockKind int

const (
	Flock LockKind = iota
	Posix
)

func (k LockKind) String() string {
	if k == Flock {
		return "Flock"
	}
	return "Posix"
}

// ProcessState is the single-character state code spec.md §3 names.
type ProcessState byte

const (
	Running  ProcessState = 'R'
	Sleeping ProcessState = 'S'
	DiskWait ProcessState = 'D'
	Stopped  ProcessState = 'T'
	Zombie   ProcessState = 'Z'
	Dead     ProcessState = 'X'
	Unknown  ProcessState = '?'
)

// Status is the record read_status(pid) returns.
type Status struct {
	Name        string
	State       ProcessState
	ParentPID   int
	UID         int
	GID         int
	RSSKilobytes int
	ThreadCount int
}

// LockRecord is one row of a per-process or system-wide lock table.
type LockRecord struct {
	SeqID      int
	Kind       LockKind
	OwningPID  int
	Inode      uint64
	RangeStart int64
	RangeEnd   int64
	IsWrite    bool
}

// Reader is the kernel-view reader interface spec.md §4.1 specifies. Every
// method fails with a *kerr.Error coded NotFound, PermissionDenied, or Io.
type Reader interface {
	// EnumerateProcesses returns the ordered sequence of live PIDs.
	EnumerateProcesses() ([]int, error)
	// ReadStatus parses the per-process status record.
	ReadStatus(pid int) (Status, error)
	// ReadFDList returns the ordered sequence of open descriptor numbers.
	ReadFDList(pid int) ([]int, error)
	// ReadWaitChannel returns the kernel symbol a process is blocked in,
	// or "" if unavailable.
	ReadWaitChannel(pid int) (string, error)
	// ReadLocks returns the process's own held-lock table.
	ReadLocks(pid int) ([]LockRecord, error)
	// ReadSystemLocks returns the system-wide lock table.
	ReadSystemLocks() ([]LockRecord, error)
	// ResolveFD returns the symbolic target of an open descriptor. Pipe
	// endpoints resolve to "pipe:[<inode>]".
	ResolveFD(pid int, fd int) (string, error)
}

// pipePrefix and pipeSuffix delimit the one descriptor-target pattern the
// core interprets, per spec.md §6.
const (
	pipePrefix = "pipe:["
	pipeSuffix = "]"
)

// ParsePipeInode extracts the inode from a resolve_fd target of the form
// "pipe:[<inode>]". ok is false for any other target shape.
func ParsePipeInode(target string) (inode uint64, ok bool) {
	if len(target) <= len(pipePrefix)+len(pipeSuffix) {
		return 0, false
	}
	if target[:len(pipePrefix)] != pipePrefix || target[len(target)-len(pipeSuffix):] != pipeSuffix {
		return 0, false
	}
	digits := target[len(pipePrefix) : len(target)-len(pipeSuffix)]
	var n uint64
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + uint64(r-'0')
	}
	return n, true
}

// errNotFound/errPermissionDenied/errIO are convenience constructors kept
// here so both platform files raise the same taxonomy consistently.
func errNotFound(format string, args ...interface{}) error {
	return kerr.New(kerr.NotFound, format, args...)
}

func errPermissionDenied(format string, args ...interface{}) error {
	return kerr.New(kerr.PermissionDenied, format, args...)
}

func errIO(format string, args ...interface{}) error {
	return kerr.New(kerr.Io, format, args...)
}

func errInvalidFormat(format string, args ...interface{}) error {
	return kerr.New(kerr.InvalidFormat, format, args...)
}
