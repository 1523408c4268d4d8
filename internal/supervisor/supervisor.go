// Package supervisor runs the main control loop: sample pressure,
// classify, decide, act, sleep. It owns the Reserve exclusively and is
// the only component that talks to the ProcessController.
package supervisor

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/memsentinel/memsentineld/internal/config"
	"github.com/memsentinel/memsentineld/internal/control"
	"github.com/memsentinel/memsentineld/internal/policy"
	"github.com/memsentinel/memsentineld/internal/process"
	"github.com/memsentinel/memsentineld/internal/ratelimit"
	"github.com/memsentinel/memsentineld/internal/reserve"
	"github.com/memsentinel/memsentineld/internal/sample"
)

// hysteresisMarginPct is the gap above soft_threshold_pct required
// before the reserve is re-held, preventing hold/release oscillation
// right at the boundary.
const hysteresisMarginPct = 5.0

const termKillGraceMs = 100 * time.Millisecond

// Supervisor runs the sample -> classify -> decide -> act -> sleep
// loop described by its Config, until asked to stop.
type Supervisor struct {
	cfg config.Config

	mem        *sample.MemSampler
	psi        *sample.PSIReader
	enumerator *process.Enumerator
	reserve    *reserve.Reserve
	limiter    *ratelimit.Limiter
	controller control.ProcessController

	state   policy.PressureState
	stopped map[int]bool // pids STOPped in slow/hybrid mode, awaiting CONT

	log zerolog.Logger

	watcher *signalWatcher

	// sleepFn and configPath exist so tests can run the loop without
	// real time.Sleep or a real file-backed reload.
	sleepFn    func(time.Duration)
	configPath string
}

// New builds a Supervisor rooted at procRoot (for MemSampler, PSIReader
// and the ProcessEnumerator) using the given initial config and
// ProcessController. procRoot "" defaults to "/proc".
func New(cfg config.Config, procRoot string, controller control.ProcessController, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		mem:        sample.NewMemSampler(procRoot),
		psi:        sample.NewPSIReader(procRoot),
		enumerator: process.NewEnumerator(procRoot),
		reserve:    reserve.New(),
		limiter:    ratelimit.New(cfg.MaxActionsPerMin),
		controller: controller,
		state:      policy.Healthy,
		stopped:    make(map[int]bool),
		log:        log,
		sleepFn:    time.Sleep,
	}
}

// SetConfigPath enables HUP-triggered reload from a file path.
func (s *Supervisor) SetConfigPath(path string) {
	s.configPath = path
}

// Config returns the currently active configuration.
func (s *Supervisor) Config() config.Config {
	return s.cfg
}

// State returns the supervisor's current PressureState.
func (s *Supervisor) State() policy.PressureState {
	return s.state
}

// Run starts the signal watcher and loops Tick until a terminate
// signal is observed or ctxDone is closed. On return, the reserve has
// been released.
func (s *Supervisor) Run(ctxDone <-chan struct{}) {
	s.watcher = newSignalWatcher()
	s.watcher.Start()
	defer s.watcher.Stop()
	defer s.reserve.Release()

	// Startup: hold the reserve opportunistically.
	s.reserve.Hold(s.cfg.ReserveMB)

	for {
		if s.watcher.TermRequested() {
			return
		}
		select {
		case <-ctxDone:
			return
		default:
		}

		if s.watcher.ReloadRequested() {
			s.reload()
		}

		sleepFor, err := s.Tick()
		if err != nil {
			s.log.Warn().Err(err).Msg("tick sample failed, retrying after backoff")
			s.sleepFn(1 * time.Second)
			continue
		}
		s.sleepFn(sleepFor)
	}
}

func (s *Supervisor) reload() {
	if s.configPath == "" {
		return
	}
	newCfg, err := config.Load(s.configPath)
	if err != nil {
		s.log.Warn().Err(err).Msg("config reload failed, keeping previous config")
		return
	}
	s.cfg = newCfg
	s.limiter = ratelimit.New(newCfg.MaxActionsPerMin)
	s.log.Info().Msg("config reloaded")
}

// Tick runs one sample -> classify -> decide -> act cycle and returns
// the duration to sleep before the next tick. A non-nil error means
// the memory sample failed (TransientReadError); the caller should
// back off and retry rather than using the returned duration.
func (s *Supervisor) Tick() (time.Duration, error) {
	mem, err := s.mem.Sample()
	if err != nil {
		return 0, err
	}

	// A zero MemTotal leaves the available percentage meaningless: force
	// Healthy and skip classification, entry actions and scoring.
	if mem.TotalKiB == 0 {
		s.state = policy.Healthy
		return time.Duration(s.cfg.ScanIntervalSec) * time.Second, nil
	}

	var psiSample *sample.PSISample
	if s.cfg.PSIEnabled && s.psi.Available() {
		p, err := s.psi.Sample()
		if err == nil {
			psiSample = &p
		} else {
			s.log.Warn().Err(err).Msg("psi sample failed, falling back to memory lane")
		}
	}

	thresholds := policy.Thresholds{
		SoftPct:    s.cfg.SoftThresholdPct,
		HardPct:    s.cfg.HardThresholdPct,
		PSIEnabled: s.cfg.PSIEnabled,
		PSISoftPct: s.cfg.PSISoftPct,
		PSIHardPct: s.cfg.PSIHardPct,
	}
	s.state = policy.Classify(mem, psiSample, thresholds)

	switch s.state {
	case policy.Healthy:
		s.enterHealthy(mem)
	case policy.Soft:
		s.enterSoft(mem)
	case policy.Hard:
		s.enterHard(mem)
	}

	return time.Duration(s.cfg.ScanIntervalSec) * time.Second, nil
}

func (s *Supervisor) enterHealthy(mem sample.MemSample) {
	if mem.AvailablePct >= s.cfg.SoftThresholdPct+hysteresisMarginPct && !s.reserve.Held() {
		s.reserve.Hold(s.cfg.ReserveMB)
	}
	for pid := range s.stopped {
		if err := s.controller.Cont(pid); err != nil {
			s.log.Warn().Int("pid", pid).Err(err).Msg("sigcont delivery failed")
		}
		delete(s.stopped, pid)
	}
}

func (s *Supervisor) enterSoft(mem sample.MemSample) {
	if s.reserve.Held() {
		s.reserve.Release()
	}
	victim, ok := s.selectVictim(mem)
	if !ok {
		return
	}
	if !s.limiter.TryConsume() {
		s.log.Warn().Int("pid", victim.PID).Msg("action denied by rate limiter")
		return
	}

	switch s.cfg.Mode {
	case config.ModeKill:
		s.killWithEscalation(victim.PID)
	case config.ModeSlow, config.ModeHybrid:
		s.stopPid(victim.PID)
	}
}

func (s *Supervisor) enterHard(mem sample.MemSample) {
	if s.reserve.Held() {
		s.reserve.Release()
	}
	victim, ok := s.selectVictim(mem)
	if !ok {
		return
	}
	if !s.limiter.TryConsume() {
		s.log.Warn().Int("pid", victim.PID).Msg("action denied by rate limiter")
		return
	}

	switch s.cfg.Mode {
	case config.ModeKill, config.ModeSlow, config.ModeHybrid:
		delete(s.stopped, victim.PID)
		s.killWithEscalation(victim.PID)
	}
}

func (s *Supervisor) stopPid(pid int) {
	if err := s.controller.Stop(pid); err != nil {
		s.log.Warn().Int("pid", pid).Err(err).Msg("sigstop delivery failed")
		return
	}
	s.stopped[pid] = true
}

func (s *Supervisor) killWithEscalation(pid int) {
	if err := s.controller.TerminateEscalating(pid, termKillGraceMs); err != nil {
		s.log.Warn().Int("pid", pid).Err(err).Msg("terminate/kill delivery failed")
	}
}

// selectVictim enumerates and scores the process table, returning the
// top candidate. ok is false if scoring yielded no candidate (total
// bytes unknown, or every process was excluded/protected).
func (s *Supervisor) selectVictim(mem sample.MemSample) (process.Scored, bool) {
	records, err := s.enumerator.Enumerate()
	if err != nil {
		s.log.Warn().Err(err).Msg("process enumeration failed")
		return process.Scored{}, false
	}

	scored := process.Score(records, process.ScoreConfig{
		ExcludeNames:   s.cfg.ExcludeNames,
		ProtectedUnits: s.cfg.ProtectedUnits,
		TotalBytes:     mem.TotalKiB * 1024,
	})
	if len(scored) == 0 {
		return process.Scored{}, false
	}
	return scored[0], true
}
