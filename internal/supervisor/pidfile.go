package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrPidFileConflict is returned when a pid file already names a live
// process — a fatal startup condition.
var ErrPidFileConflict = fmt.Errorf("supervisor: pid file names a running process")

// WritePidFile creates path containing the current process's pid
// followed by a newline. If path already exists and names a live
// process (per a zero-signal probe), it returns ErrPidFileConflict
// without overwriting. A stale pid file (process no longer alive) is
// replaced.
func WritePidFile(path string) error {
	if existing, ok := readPid(path); ok && isAlive(existing) {
		return ErrPidFileConflict
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

// RemovePidFile deletes path, ignoring a not-exist error (clean
// shutdown may race a prior manual removal).
func RemovePidFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ReadPidFile parses the pid recorded at path.
func ReadPidFile(path string) (int, error) {
	pid, ok := readPid(path)
	if !ok {
		return 0, fmt.Errorf("supervisor: cannot read pid file %s", path)
	}
	return pid, nil
}

func readPid(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// isAlive probes pid with signal 0: delivery succeeds (no-op) iff the
// process exists and is visible to us.
func isAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil
}
