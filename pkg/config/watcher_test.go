package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())

	conf, err := NewAppConfig("name", "version", "commit", "date", "buildSource", false)
	require.NoError(t, err)

	watcher, err := NewWatcher(conf)
	require.NoError(t, err)
	defer watcher.Close()

	err = conf.WriteToUserConfig(func(uc *UserConfig) error {
		uc.Scan.IntervalSeconds = 99
		return nil
	})
	require.NoError(t, err)

	select {
	case reloaded, ok := <-watcher.Reloaded:
		require.True(t, ok)
		require.Equal(t, 99, reloaded.Scan.IntervalSeconds)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload notification")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())

	conf, err := NewAppConfig("name", "version", "commit", "date", "buildSource", false)
	require.NoError(t, err)

	watcher, err := NewWatcher(conf)
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.WriteFile(conf.ConfigFilename()+".bak", []byte("scan:\n"), 0o644))

	select {
	case <-watcher.Reloaded:
		t.Fatal("did not expect a reload from an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}
