// Package snapshot assembles one process snapshot per live PID for a
// single detection pass, joining the kernel-view reader's per-process
// operations (internal/kview) into the consistent record the dependency
// analyzer (internal/depgraph) consumes. Per-process errors are absorbed:
// a process that vanishes mid-pass is skipped, not fatal.
package snapshot

import (
	"strconv"
	"strings"

	"github.com/lazytrace/deadlockd/internal/kerr"
	"github.com/lazytrace/deadlockd/internal/kview"
	"github.com/lazytrace/deadlockd/pkg/utils"
)

// pipeVocabulary and lockVocabulary are the fixed token sets spec.md §3
// names for deriving the two "blocked on X" booleans from the raw wait
// channel string.
var (
	pipeVocabulary = []string{"pipe", "futex"}
	lockVocabulary = []string{"flock", "lock"}
)

// PipeEndpoint is an open descriptor whose kernel object is an anonymous
// pipe, tagged with the pipe's inode.
type PipeEndpoint struct {
	FD    int
	Inode uint64
}

// Snapshot is the per-process record spec.md §3 specifies.
type Snapshot struct {
	PID             int
	Name            string
	State           kview.ProcessState
	OpenFDs         []int
	WaitChannel     string
	HeldLocks       []kview.LockRecord
	PipeEndpoints   []PipeEndpoint
	IsBlockedOnPipe bool
	IsBlockedOnLock bool
	RSSKilobytes    int
	ThreadCount     int
}

// String renders a snapshot as an aligned field/value table for log lines,
// grounded on the teacher's GetDisplayStrings/GetDisplayStatus convention
// of rendering one domain object's fields as a table row.
func (s Snapshot) String() string {
	rows := [][]string{
		{"pid", strconv.Itoa(s.PID)},
		{"name", s.Name},
		{"state", s.State.String()},
		{"rss", utils.FormatBinaryBytes(s.RSSKilobytes)},
		{"threads", strconv.Itoa(s.ThreadCount)},
		{"wait_channel", s.WaitChannel},
		{"blocked_on_pipe", strconv.FormatBool(s.IsBlockedOnPipe)},
		{"blocked_on_lock", strconv.FormatBool(s.IsBlockedOnLock)},
	}
	rendered, err := utils.RenderTable(rows)
	if err != nil {
		return "pid " + strconv.Itoa(s.PID)
	}
	return rendered
}

// Assemble builds one snapshot per PID enumeration returns, in
// enumeration order, absorbing per-process NotFound/PermissionDenied/Io
// failures as a skip. It fails the whole pass only if enumeration itself
// fails, or if a per-process error's code is one spec.md §7 marks fatal
// (OutOfMemory, InvalidArgument) rather than a local skip.
func Assemble(r kview.Reader) ([]Snapshot, error) {
	pids, err := r.EnumerateProcesses()
	if err != nil {
		return nil, err
	}

	snapshots := make([]Snapshot, 0, len(pids))
	for _, pid := range pids {
		snap, err := assembleOne(r, pid)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// isFatal reports whether a per-process read failure aborts the whole
// pass rather than being absorbed as a skip, per spec.md §7.
func isFatal(err error) bool {
	return kerr.Is(err, kerr.OutOfMemory) || kerr.Is(err, kerr.InvalidArgument)
}

func assembleOne(r kview.Reader, pid int) (Snapshot, error) {
	status, err := r.ReadStatus(pid)
	if err != nil {
		return Snapshot{}, err
	}

	fds, err := r.ReadFDList(pid)
	if err != nil {
		return Snapshot{}, err
	}

	wc, err := r.ReadWaitChannel(pid)
	if err != nil {
		return Snapshot{}, err
	}

	locks, err := r.ReadLocks(pid)
	if err != nil {
		return Snapshot{}, err
	}

	endpoints := derivePipeEndpoints(r, pid, fds)

	snap := Snapshot{
		PID:             pid,
		Name:            status.Name,
		State:           status.State,
		OpenFDs:         fds,
		WaitChannel:     wc,
		HeldLocks:       locks,
		PipeEndpoints:   endpoints,
		IsBlockedOnPipe: containsAny(wc, pipeVocabulary),
		IsBlockedOnLock: containsAny(wc, lockVocabulary),
		RSSKilobytes:    status.RSSKilobytes,
		ThreadCount:     status.ThreadCount,
	}
	return snap, nil
}

// derivePipeEndpoints iterates open descriptors and keeps those whose
// resolve_fd target matches the pipe form. A resolution failure for a
// single fd is swallowed: the fd is simply not a pipe endpoint as far as
// this pass is concerned, matching the per-process absorption policy.
func derivePipeEndpoints(r kview.Reader, pid int, fds []int) []PipeEndpoint {
	var endpoints []PipeEndpoint
	for _, fd := range fds {
		target, err := r.ResolveFD(pid, fd)
		if err != nil {
			continue
		}
		inode, ok := kview.ParsePipeInode(target)
		if !ok {
			continue
		}
		endpoints = append(endpoints, PipeEndpoint{FD: fd, Inode: inode})
	}
	return endpoints
}

func containsAny(s string, vocabulary []string) bool {
	for _, token := range vocabulary {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}
