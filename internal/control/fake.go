package control

import (
	"strconv"
	"time"
)

// Call records a single invocation against the fake controller.
type Call struct {
	Op  string // "stop", "cont", "term", "kill" (TerminateEscalating records "term" and "kill")
	PID int
}

// Fake is a recording ProcessController for tests. It never fails
// unless a failure has been queued for the given op/pid combination
// via FailNext.
type Fake struct {
	Calls      []Call
	failures   map[string]error
	existsFunc func(pid int) bool
}

// NewFake builds a Fake that always succeeds and always reports the
// target as gone (suitable for TerminateEscalating tests that expect
// no KILL to follow a successful TERM).
func NewFake() *Fake {
	return &Fake{
		failures:   make(map[string]error),
		existsFunc: func(int) bool { return false },
	}
}

// FailNext arranges for the next call to op against pid to return err.
func (f *Fake) FailNext(op string, pid int, err error) {
	f.failures[key(op, pid)] = err
}

// SetExists controls what TerminateEscalating sees when it probes for
// process survival after the grace sleep.
func (f *Fake) SetExists(fn func(pid int) bool) {
	f.existsFunc = fn
}

func key(op string, pid int) string {
	return op + ":" + strconv.Itoa(pid)
}

func (f *Fake) record(op string, pid int) error {
	f.Calls = append(f.Calls, Call{Op: op, PID: pid})
	if err, ok := f.failures[key(op, pid)]; ok {
		delete(f.failures, key(op, pid))
		return err
	}
	return nil
}

func (f *Fake) Stop(pid int) error { return f.record("stop", pid) }
func (f *Fake) Cont(pid int) error { return f.record("cont", pid) }
func (f *Fake) Term(pid int) error { return f.record("term", pid) }
func (f *Fake) Kill(pid int) error { return f.record("kill", pid) }

// TerminateEscalating mirrors SignalController's behavior against the
// fake's recorded state: it always records a "term" call, then a
// "kill" call only if existsFunc reports the pid as still present. No
// real sleep occurs — tests don't pay the grace-period cost.
func (f *Fake) TerminateEscalating(pid int, _ time.Duration) error {
	termErr := f.record("term", pid)
	if !f.existsFunc(pid) {
		return termErr
	}
	killErr := f.record("kill", pid)
	if killErr != nil {
		return killErr
	}
	return termErr
}
