package pid

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	f := New(t.TempDir())

	require.NoError(t, f.Write())

	content, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))

	require.NoError(t, f.Remove())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine
	assert.NoError(t, f.Remove())
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	f := New("")
	assert.Equal(t, os.TempDir(), filepath.Dir(f.Path()))
}

func TestWriteRefusesLiveProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	f := New(t.TempDir())
	require.NoError(t, os.WriteFile(f.Path(), []byte(strconv.Itoa(cmd.Process.Pid)), 0o600))

	err := f.Write()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteReplacesStaleFile(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run helper process: %v", err)
	}

	f := New(t.TempDir())
	require.NoError(t, os.WriteFile(f.Path(), []byte(strconv.Itoa(cmd.Process.Pid)), 0o600))

	require.NoError(t, f.Write())

	content, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))
}

func TestWriteReplacesGarbage(t *testing.T) {
	f := New(t.TempDir())
	require.NoError(t, os.WriteFile(f.Path(), []byte("not a pid\n"), 0o600))

	assert.NoError(t, f.Write())
}

func TestWriteOwnPID(t *testing.T) {
	f := New(t.TempDir())
	require.NoError(t, f.Write())
	assert.NoError(t, f.Write())
}
