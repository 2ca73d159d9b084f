//go:build !linux

package kview

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// GopsutilFallback is the degraded non-Linux reader. It can enumerate
// processes and approximate status via gopsutil, but the kernel does not
// externalize wait channels, locks, or pipe endpoints through a portable
// API: wait channels and lock tables come back empty, and fd resolution
// fails with Io.
type GopsutilFallback struct{}

// NewProcReader is named to match the Linux constructor so callers in
// pkg/app can stay platform-agnostic; root is accepted and ignored.
func NewProcReader(root string) *GopsutilFallback {
	return &GopsutilFallback{}
}

func (g *GopsutilFallback) EnumerateProcesses() ([]int, error) {
	pids, err := process.PidsWithContext(context.Background())
	if err != nil {
		return nil, errIO("enumerating processes: %v", err)
	}
	out := make([]int, len(pids))
	for i, p := range pids {
		out[i] = int(p)
	}
	return out, nil
}

func (g *GopsutilFallback) ReadStatus(pid int) (Status, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return Status{}, errNotFound("pid %d: %v", pid, err)
	}
	name, _ := p.Name()
	ppid, _ := p.Ppid()
	uids, _ := p.Uids()
	memInfo, _ := p.MemoryInfo()
	threads, _ := p.NumThreads()

	status := Status{
		Name:      name,
		State:     Unknown,
		ParentPID: int(ppid),
		ThreadCount: int(threads),
	}
	if len(uids) > 0 {
		status.UID = int(uids[0])
	}
	if memInfo != nil {
		status.RSSKilobytes = int(memInfo.RSS / 1024)
	}
	return status, nil
}

func (g *GopsutilFallback) ReadFDList(pid int) ([]int, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, errNotFound("pid %d: %v", pid, err)
	}
	n, err := p.NumFDs()
	if err != nil {
		return nil, errIO("pid %d fd count: %v", pid, err)
	}
	fds := make([]int, n)
	for i := range fds {
		fds[i] = i
	}
	return fds, nil
}

// ReadWaitChannel, ReadLocks, ReadSystemLocks, and ResolveFD have no
// portable gopsutil equivalent. The first three return an empty result
// with no error, so every process still yields a snapshot; ResolveFD fails
// with Io, which the snapshot assembler absorbs per descriptor.

func (g *GopsutilFallback) ReadWaitChannel(pid int) (string, error) {
	return "", nil
}

func (g *GopsutilFallback) ReadLocks(pid int) ([]LockRecord, error) {
	return nil, nil
}

func (g *GopsutilFallback) ReadSystemLocks() ([]LockRecord, error) {
	return nil, nil
}

func (g *GopsutilFallback) ResolveFD(pid int, fd int) (string, error) {
	return "", errIO("fd resolution unsupported on this platform")
}

func (s ProcessState) String() string {
	return string(rune(s))
}
