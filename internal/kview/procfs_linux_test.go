//go:build linux

package kview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lazytrace/deadlockd/internal/kerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newFixtureRoot(t *testing.T) string {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "1001", "status"),
		"Name:\tworker\nState:\tS (sleeping)\nPPid:\t1\nUid:\t1000\t1000\t1000\t1000\nGid:\t1000\t1000\t1000\t1000\nVmRSS:\t2048 kB\nThreads:\t4\n")
	writeFile(t, filepath.Join(root, "1001", "wchan"), "pipe_wait")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "1001", "fd"), 0o755))
	require.NoError(t, os.Symlink("pipe:[54321]", filepath.Join(root, "1001", "fd", "3")))
	require.NoError(t, os.Symlink("/dev/null", filepath.Join(root, "1001", "fd", "0")))

	writeFile(t, filepath.Join(root, "locks"),
		"1: FLOCK  ADVISORY  WRITE 1002 00:13:40271 0 EOF\n2: POSIX  ADVISORY  READ  1001 00:13:40272 0 0\n")

	return root
}

func TestEnumerateProcesses(t *testing.T) {
	root := newFixtureRoot(t)
	writeFile(t, filepath.Join(root, "not-a-pid", "status"), "")

	r := NewProcReader(root)
	pids, err := r.EnumerateProcesses()
	require.NoError(t, err)
	assert.Contains(t, pids, 1001)
	assert.NotContains(t, pids, 0)
}

func TestEnumerateProcessesMissingRoot(t *testing.T) {
	r := NewProcReader(filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := r.EnumerateProcesses()
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.Io))
}

func TestReadStatus(t *testing.T) {
	root := newFixtureRoot(t)
	r := NewProcReader(root)

	status, err := r.ReadStatus(1001)
	require.NoError(t, err)
	assert.Equal(t, "worker", status.Name)
	assert.Equal(t, Sleeping, status.State)
	assert.Equal(t, 1, status.ParentPID)
	assert.Equal(t, 1000, status.UID)
	assert.Equal(t, 2048, status.RSSKilobytes)
	assert.Equal(t, 4, status.ThreadCount)

	// served from cache on the second call within the TTL
	status2, err := r.ReadStatus(1001)
	require.NoError(t, err)
	assert.Equal(t, status, status2)
}

func TestReadStatusNotFound(t *testing.T) {
	root := newFixtureRoot(t)
	r := NewProcReader(root)

	_, err := r.ReadStatus(9999)
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.NotFound))
}

func TestReadFDListAndResolveFD(t *testing.T) {
	root := newFixtureRoot(t)
	r := NewProcReader(root)

	fds, err := r.ReadFDList(1001)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 3}, fds)

	target, err := r.ResolveFD(1001, 3)
	require.NoError(t, err)
	assert.Equal(t, "pipe:[54321]", target)

	inode, ok := ParsePipeInode(target)
	assert.True(t, ok)
	assert.EqualValues(t, 54321, inode)

	target0, err := r.ResolveFD(1001, 0)
	require.NoError(t, err)
	_, ok = ParsePipeInode(target0)
	assert.False(t, ok)
}

func TestReadWaitChannel(t *testing.T) {
	root := newFixtureRoot(t)
	r := NewProcReader(root)

	wc, err := r.ReadWaitChannel(1001)
	require.NoError(t, err)
	assert.Equal(t, "pipe_wait", wc)
}

func TestReadSystemLocksAndReadLocks(t *testing.T) {
	root := newFixtureRoot(t)
	r := NewProcReader(root)

	all, err := r.ReadSystemLocks()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, Flock, all[0].Kind)
	assert.True(t, all[0].IsWrite)
	assert.EqualValues(t, 40271, all[0].Inode)
	assert.Equal(t, -1, int(all[0].RangeEnd))

	owned, err := r.ReadLocks(1001)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, Posix, owned[0].Kind)
	assert.False(t, owned[0].IsWrite)
}

func TestParseLockLineRejectsMalformed(t *testing.T) {
	_, err := parseLockLine("garbage")
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.InvalidFormat))
}
