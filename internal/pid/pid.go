package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
)

const (
	pidFile = "dalybms-bridge.pid"
)

// File is a PID file guarding against a second running instance.
type File struct {
	path string
}

// New returns the PID file in dir, or in os.TempDir() when dir is empty.
func New(dir string) *File {
	if dir == "" {
		dir = os.TempDir()
	}
	return &File{path: filepath.Join(dir, pidFile)}
}

// Path returns the location of the PID file.
func (f *File) Path() string {
	return f.path
}

// Write writes the current process ID to the PID file. An existing file
// naming a live process other than this one is an ErrAlreadyRunning error;
// a stale or unreadable one is replaced.
func (f *File) Write() error {
	errFactory := errors.New()
	pid := os.Getpid()

	if running, err := f.running(pid); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	} else if running != 0 {
		return errFactory.WithData(errors.ErrAlreadyRunning, running)
	}

	err := os.WriteFile(f.path, []byte(strconv.Itoa(pid)), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// running returns the PID of another live process holding the file, or 0.
func (f *File) running(self int) (int, error) {
	bytes, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
	if err != nil || pid <= 0 || pid == self {
		return 0, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, nil
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, nil
	}

	return pid, nil
}

// Remove removes the PID file.
func (f *File) Remove() error {
	errFactory := errors.New()

	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(f.path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
