// Package policy fuses the memory and pressure-stall lanes into a
// single PressureState, the signal the supervisor's state machine acts
// on.
package policy

import "github.com/memsentinel/memsentineld/internal/sample"

// PressureState is totally ordered by severity: Healthy < Soft < Hard.
type PressureState int

const (
	Healthy PressureState = iota
	Soft
	Hard
)

func (s PressureState) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Soft:
		return "soft"
	case Hard:
		return "hard"
	default:
		return "unknown"
	}
}

// Thresholds carries the classifier's configured cutoffs. SoftPct and
// HardPct are memory-available percentages; PSISoftPct/PSIHardPct are
// some.avg10 percentages. PSIEnabled gates whether the PSI lane
// participates in fusion at all.
type Thresholds struct {
	SoftPct    float64
	HardPct    float64
	PSIEnabled bool
	PSISoftPct float64
	PSIHardPct float64
}

// Classify fuses a memory sample and an optional PSI sample into a
// PressureState. psi may be nil — the caller passes nil when PSI is
// disabled or unavailable, and the memory lane alone decides.
//
// Memory lane: strict less-than against HardPct/SoftPct.
// PSI lane (when present and enabled): greater-or-equal against
// PSIHardPct/PSISoftPct, applied to psi.Some.Avg10.
// The two lanes combine by worst-of: Hard beats Soft beats Healthy.
func Classify(mem sample.MemSample, psi *sample.PSISample, cfg Thresholds) PressureState {
	memState := classifyMem(mem.AvailablePct, cfg.SoftPct, cfg.HardPct)

	if psi == nil || !cfg.PSIEnabled {
		return memState
	}

	psiState := classifyPSI(psi.Some.Avg10, cfg.PSISoftPct, cfg.PSIHardPct)
	return worstOf(memState, psiState)
}

func classifyMem(availPct, softPct, hardPct float64) PressureState {
	switch {
	case availPct < hardPct:
		return Hard
	case availPct < softPct:
		return Soft
	default:
		return Healthy
	}
}

func classifyPSI(avg10, softPct, hardPct float64) PressureState {
	switch {
	case avg10 >= hardPct:
		return Hard
	case avg10 >= softPct:
		return Soft
	default:
		return Healthy
	}
}

func worstOf(a, b PressureState) PressureState {
	if a > b {
		return a
	}
	return b
}
