//go:build linux

package kview

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// statusCacheTTL is the per-pid cache lifetime spec.md §4.1 names.
const statusCacheTTL = 5 * time.Second

type statusCacheEntry struct {
	status  Status
	readAt  time.Time
}

// ProcReader reads /proc on Linux. Root is overridable so tests can point
// it at a fixture tree instead of the real /proc.
type ProcReader struct {
	Root string

	cacheMu sync.Mutex
	cache   map[int]statusCacheEntry
}

// NewProcReader returns a reader rooted at root (use "/proc" in
// production).
func NewProcReader(root string) *ProcReader {
	return &ProcReader{
		Root:  root,
		cache: make(map[int]statusCacheEntry),
	}
}

func (r *ProcReader) pidDir(pid int) string {
	return filepath.Join(r.Root, strconv.Itoa(pid))
}

// EnumerateProcesses scans the process-table root for entries whose name
// parses as a positive integer.
func (r *ProcReader) EnumerateProcesses() ([]int, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if os.IsPermission(err) {
			return nil, errPermissionDenied("reading %s: %v", r.Root, err)
		}
		return nil, errIO("reading %s: %v", r.Root, err)
	}

	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// ReadStatus parses /proc/<pid>/status, tolerating missing fields, and
// serves from the TTL-bounded cache when possible.
func (r *ProcReader) ReadStatus(pid int) (Status, error) {
	if cached, ok := r.cachedStatus(pid); ok {
		return cached, nil
	}

	path := filepath.Join(r.pidDir(pid), "status")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Status{}, errNotFound("pid %d vanished: %v", pid, err)
		}
		if os.IsPermission(err) {
			return Status{}, errPermissionDenied("pid %d: %v", pid, err)
		}
		return Status{}, errIO("pid %d: %v", pid, err)
	}
	defer f.Close()

	status := Status{State: Unknown}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := splitStatusLine(line)
		if !ok {
			continue
		}
		switch key {
		case "Name":
			status.Name = value
		case "State":
			if len(value) > 0 {
				status.State = ProcessState(value[0])
			}
		case "PPid":
			status.ParentPID, _ = strconv.Atoi(value)
		case "Uid":
			status.UID, _ = strconv.Atoi(firstField(value))
		case "Gid":
			status.GID, _ = strconv.Atoi(firstField(value))
		case "VmRSS":
			status.RSSKilobytes, _ = strconv.Atoi(firstField(value))
		case "Threads":
			status.ThreadCount, _ = strconv.Atoi(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return Status{}, errIO("pid %d status: %v", pid, err)
	}

	r.storeStatus(pid, status)
	return status, nil
}

func (r *ProcReader) cachedStatus(pid int) (Status, bool) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	entry, ok := r.cache[pid]
	if !ok || time.Since(entry.readAt) > statusCacheTTL {
		return Status{}, false
	}
	return entry.status, true
}

func (r *ProcReader) storeStatus(pid int, status Status) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache[pid] = statusCacheEntry{status: status, readAt: time.Now()}
}

func splitStatusLine(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], strings.TrimSpace(line[idx+1:]), true
}

func firstField(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ReadFDList lists /proc/<pid>/fd, an entry per open descriptor.
func (r *ProcReader) ReadFDList(pid int) ([]int, error) {
	path := filepath.Join(r.pidDir(pid), "fd")
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotFound("pid %d vanished: %v", pid, err)
		}
		if os.IsPermission(err) {
			return nil, errPermissionDenied("pid %d fd list: %v", pid, err)
		}
		return nil, errIO("pid %d fd list: %v", pid, err)
	}

	fds := make([]int, 0, len(entries))
	for _, e := range entries {
		fd, err := strconv.Atoi(e.Name())
		if err != nil || fd < 0 {
			continue
		}
		fds = append(fds, fd)
	}
	return fds, nil
}

// ReadWaitChannel reads /proc/<pid>/wchan, a single line with no trailing
// newline expected but trimmed defensively.
func (r *ProcReader) ReadWaitChannel(pid int) (string, error) {
	path := filepath.Join(r.pidDir(pid), "wchan")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errNotFound("pid %d vanished: %v", pid, err)
		}
		if os.IsPermission(err) {
			return "", errPermissionDenied("pid %d wchan: %v", pid, err)
		}
		return "", errIO("pid %d wchan: %v", pid, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// ReadLocks parses the subset of /proc/locks rows held by pid.
func (r *ProcReader) ReadLocks(pid int) ([]LockRecord, error) {
	all, err := r.ReadSystemLocks()
	if err != nil {
		return nil, err
	}
	owned := make([]LockRecord, 0, len(all))
	for _, l := range all {
		if l.OwningPID == pid {
			owned = append(owned, l)
		}
	}
	return owned, nil
}

// ReadSystemLocks parses /proc/locks, whose rows look like:
//
//	1: FLOCK  ADVISORY  WRITE 1234 00:13:40271 0 EOF
//	2: POSIX  ADVISORY  READ  5678 00:13:40272 0 0
func (r *ProcReader) ReadSystemLocks() ([]LockRecord, error) {
	path := filepath.Join(r.Root, "locks")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotFound("locks table: %v", err)
		}
		if os.IsPermission(err) {
			return nil, errPermissionDenied("locks table: %v", err)
		}
		return nil, errIO("locks table: %v", err)
	}
	defer f.Close()

	var records []LockRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parseLockLine(line)
		if err != nil {
			continue // InvalidFormat is per-record; skip and keep scanning
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errIO("locks table: %v", err)
	}
	return records, nil
}

// parseLockLine parses one whitespace-separated row of the form
// "seq: kind advisory rw pid dev:inode start end" per spec.md §4.1.
func parseLockLine(line string) (LockRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return LockRecord{}, errInvalidFormat("locks line %q: too few fields", line)
	}

	seqStr := strings.TrimSuffix(fields[0], ":")
	seqID, err := strconv.Atoi(seqStr)
	if err != nil {
		return LockRecord{}, errInvalidFormat("locks line %q: bad seq id", line)
	}

	var kind LockKind
	switch strings.ToUpper(fields[1]) {
	case "FLOCK":
		kind = Flock
	case "POSIX":
		kind = Posix
	default:
		return LockRecord{}, errInvalidFormat("locks line %q: unknown kind %q", line, fields[1])
	}

	isWrite := strings.EqualFold(fields[3], "WRITE")

	pid, err := strconv.Atoi(fields[4])
	if err != nil {
		return LockRecord{}, errInvalidFormat("locks line %q: bad pid", line)
	}

	devInode := strings.SplitN(fields[5], ":", 3)
	var inode uint64
	if len(devInode) == 3 {
		inode, _ = strconv.ParseUint(devInode[2], 10, 64)
	}

	start, _ := strconv.ParseInt(fields[6], 10, 64)
	var end int64
	if fields[7] == "EOF" {
		end = -1
	} else {
		end, _ = strconv.ParseInt(fields[7], 10, 64)
	}

	return LockRecord{
		SeqID:      seqID,
		Kind:       kind,
		OwningPID:  pid,
		Inode:      inode,
		RangeStart: start,
		RangeEnd:   end,
		IsWrite:    isWrite,
	}, nil
}

// ResolveFD reads the /proc/<pid>/fd/<fd> symlink target.
func (r *ProcReader) ResolveFD(pid int, fd int) (string, error) {
	path := filepath.Join(r.pidDir(pid), "fd", strconv.Itoa(fd))
	target, err := os.Readlink(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errNotFound("pid %d fd %d vanished: %v", pid, fd, err)
		}
		if os.IsPermission(err) {
			return "", errPermissionDenied("pid %d fd %d: %v", pid, fd, err)
		}
		return "", errIO("pid %d fd %d: %v", pid, fd, err)
	}
	return target, nil
}

var _ fmt.Stringer = ProcessState(0)

func (s ProcessState) String() string {
	return string(rune(s))
}
