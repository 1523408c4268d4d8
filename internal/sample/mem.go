// Package sample reads the two kernel memory-pressure sources: classic
// available-memory accounting from /proc/meminfo and Pressure Stall
// Information from /proc/pressure/memory.
package sample

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MemSample is a snapshot of memory accounting. It is never cached and
// never outlives the tick that produced it.
type MemSample struct {
	TotalKiB     uint64
	AvailableKiB uint64
	AvailablePct float64
}

// MemSampler reads the system memory counters file (normally
// /proc/meminfo). ProcRoot lets tests point at a scratch directory.
type MemSampler struct {
	ProcRoot string
}

// NewMemSampler builds a MemSampler rooted at procRoot. An empty
// procRoot defaults to "/proc".
func NewMemSampler(procRoot string) *MemSampler {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &MemSampler{ProcRoot: procRoot}
}

// Sample re-reads the memory counters file and returns a fresh MemSample.
// MemAvailable falls back to MemFree when absent or zero. Division by
// zero total yields a 0% available percentage rather than an error.
func (s *MemSampler) Sample() (MemSample, error) {
	f, err := os.Open(filepath.Join(s.ProcRoot, "meminfo"))
	if err != nil {
		return MemSample{}, fmt.Errorf("sample: open meminfo: %w", err)
	}
	defer f.Close()

	var total, available, free uint64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		valStr := strings.TrimSpace(parts[1])
		valStr = strings.TrimSuffix(valStr, " kB")
		val, convErr := strconv.ParseUint(strings.TrimSpace(valStr), 10, 64)
		if convErr != nil {
			continue
		}

		switch key {
		case "MemTotal":
			total = val
		case "MemAvailable":
			available = val
		case "MemFree":
			free = val
		}
	}
	if err := scanner.Err(); err != nil {
		return MemSample{}, fmt.Errorf("sample: scan meminfo: %w", err)
	}

	avail := available
	if avail == 0 {
		avail = free
	}

	var pct float64
	if total > 0 {
		pct = float64(avail) / float64(total) * 100
	}

	return MemSample{
		TotalKiB:     total,
		AvailableKiB: avail,
		AvailablePct: pct,
	}, nil
}
