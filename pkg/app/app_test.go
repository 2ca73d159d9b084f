//go:build linux

package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazytrace/deadlockd/internal/kview"
	"github.com/lazytrace/deadlockd/pkg/config"
	"github.com/lazytrace/deadlockd/pkg/report"
)

func newReaderFor(t *testing.T, root string) kview.Reader {
	t.Helper()
	return kview.NewProcReader(root)
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("CONFIG_DIR", t.TempDir())

	cfg, err := config.NewAppConfig("deadlockd-test", "v0", "abc", "2026-01-01", "test", false)
	require.NoError(t, err)

	a, err := NewApp(cfg)
	require.NoError(t, err)
	return a
}

func writeStatus(t *testing.T, root string, pid int, state byte) {
	t.Helper()
	dir := filepath.Join(root, itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status"),
		[]byte("Name:\tp\nState:\t"+string(state)+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wchan"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fd"), 0o755))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestRunOnceEmptyProcessTable(t *testing.T) {
	a := newTestApp(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "locks"), nil, 0o644))
	a.Config.UserConfig.Scan.ProcRoot = root
	a.Reader = newReaderFor(t, root)

	rpt, err := a.RunOnce(time.Now().Unix())
	require.NoError(t, err)
	assert.False(t, rpt.Detected)
	assert.Equal(t, 0, rpt.ProcessesScanned)
}

func TestRunOnceReportsNoDeadlockForIndependentProcesses(t *testing.T) {
	a := newTestApp(t)
	root := t.TempDir()
	writeStatus(t, root, 1001, 'S')
	writeStatus(t, root, 1002, 'S')
	require.NoError(t, os.WriteFile(filepath.Join(root, "locks"), nil, 0o644))
	a.Config.UserConfig.Scan.ProcRoot = root
	a.Reader = newReaderFor(t, root)

	rpt, err := a.RunOnce(time.Now().Unix())
	require.NoError(t, err)
	assert.False(t, rpt.Detected)
	assert.Equal(t, 2, rpt.ProcessesScanned)
}

func TestShutdownFlag(t *testing.T) {
	a := newTestApp(t)
	assert.False(t, a.ShutdownRequested())
	a.RequestShutdown()
	assert.True(t, a.ShutdownRequested())
}

func TestRunContinuousStopsOnShutdown(t *testing.T) {
	a := newTestApp(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "locks"), nil, 0o644))
	a.Config.UserConfig.Scan.ProcRoot = root
	a.Config.UserConfig.Scan.IntervalSeconds = 1
	a.Reader = newReaderFor(t, root)
	a.RequestShutdown()

	renderer := &countingRenderer{}
	err := a.RunContinuous(renderer, func() int64 { return 0 })
	require.NoError(t, err)
	assert.Equal(t, 0, renderer.calls)
}

type countingRenderer struct{ calls int }

func (c *countingRenderer) Render(report.Report) error {
	c.calls++
	return nil
}
