// Package control delivers process-lifecycle signals on the
// supervisor's behalf, with TERM→KILL escalation and a recording fake
// for tests.
package control

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// SignalKind classifies a delivery failure for logging and metrics.
type SignalKind int

const (
	KindPermission SignalKind = iota
	KindNotFound
	KindOther
)

func (k SignalKind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// SignalError reports a failed signal delivery without aborting the
// tick that triggered it.
type SignalError struct {
	PID    int
	Kind   SignalKind
	Detail string
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("control: signal to pid %d failed (%s): %s", e.PID, e.Kind, e.Detail)
}

func classifyErrno(pid int, err error) *SignalError {
	if err == nil {
		return nil
	}
	kind := KindOther
	switch {
	case err == unix.EPERM:
		kind = KindPermission
	case err == unix.ESRCH:
		kind = KindNotFound
	}
	return &SignalError{PID: pid, Kind: kind, Detail: err.Error()}
}

// ProcessController is the abstract capability the supervisor acts
// through. The real implementation delivers actual signals; tests
// substitute a recording fake with the same surface.
type ProcessController interface {
	Stop(pid int) error
	Cont(pid int) error
	Term(pid int) error
	Kill(pid int) error
	TerminateEscalating(pid int, grace time.Duration) error
}

// SignalController is the real ProcessController, backed by the Linux
// kill(2) syscall via golang.org/x/sys/unix.
type SignalController struct {
	// ProcRoot is consulted by TerminateEscalating to probe whether a
	// process still exists after the grace period. Defaults to "/proc".
	ProcRoot string
}

// NewSignalController builds a SignalController rooted at procRoot
// (default "/proc").
func NewSignalController(procRoot string) *SignalController {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &SignalController{ProcRoot: procRoot}
}

func (c *SignalController) Stop(pid int) error {
	return wrapErr(pid, unix.Kill(pid, unix.SIGSTOP))
}

func (c *SignalController) Cont(pid int) error {
	return wrapErr(pid, unix.Kill(pid, unix.SIGCONT))
}

func (c *SignalController) Term(pid int) error {
	return wrapErr(pid, unix.Kill(pid, unix.SIGTERM))
}

func (c *SignalController) Kill(pid int) error {
	return wrapErr(pid, unix.Kill(pid, unix.SIGKILL))
}

// TerminateEscalating sends TERM, sleeps grace, and sends KILL only if
// the process directory still exists in ProcRoot. A TERM failure is
// still reported, but escalation is attempted regardless — a process
// that no longer accepts TERM may still respond to KILL in edge cases
// (e.g. a racing exec).
func (c *SignalController) TerminateEscalating(pid int, grace time.Duration) error {
	termErr := c.Term(pid)

	time.Sleep(grace)

	if !c.exists(pid) {
		return termErr
	}

	killErr := c.Kill(pid)
	if killErr != nil {
		return killErr
	}
	return termErr
}

func (c *SignalController) exists(pid int) bool {
	_, err := os.Stat(fmt.Sprintf("%s/%d", c.ProcRoot, pid))
	return err == nil
}

func wrapErr(pid int, err error) error {
	if err == nil {
		return nil
	}
	if se := classifyErrno(pid, err); se != nil {
		return se
	}
	return err
}
