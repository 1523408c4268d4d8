// Package process walks the kernel process table, attributes each
// process to a cgroup slice, and computes the composite badness score
// that drives victim selection.
package process

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/memsentinel/memsentineld/internal/cgroup"
)

// minResidentBytes is the noise-filter cutoff applied at enumeration
// time: processes smaller than this never reach the scorer.
const minResidentBytes = 10 * 1024 * 1024

const pageSize = 4096

// Record is a raw per-process observation collected by the Enumerator,
// before filtering or scoring. It is transient: it never outlives the
// tick that produced it.
type Record struct {
	PID         int
	Name        string
	RSSBytes    uint64
	OOMScoreAdj int
	Cgroup      cgroup.Info
}

// Enumerator walks /proc and gathers one Record per live, non-tiny
// process. Individual per-process read failures are skipped, never
// fatal to the scan.
type Enumerator struct {
	ProcRoot string
	Resolver *cgroup.Resolver
}

// NewEnumerator builds an Enumerator rooted at procRoot (default
// "/proc"), with its own cgroup.Resolver sharing the same root.
func NewEnumerator(procRoot string) *Enumerator {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &Enumerator{
		ProcRoot: procRoot,
		Resolver: cgroup.NewResolver(procRoot),
	}
}

// Enumerate walks every numeric entry under ProcRoot and returns a
// Record for each process whose resident set is at least 10 MiB.
// Directory-read failure on the process root itself is returned as an
// error; everything downstream of that degrades to "skip".
func (e *Enumerator) Enumerate() ([]Record, error) {
	entries, err := os.ReadDir(e.ProcRoot)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		pid, convErr := strconv.Atoi(entry.Name())
		if convErr != nil {
			continue
		}

		rec, ok := e.readOne(pid)
		if !ok {
			continue
		}
		if rec.RSSBytes < minResidentBytes {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// readOne gathers a single process's stat, comm, oom_score_adj and
// cgroup info. A missing/malformed stat file disqualifies the process
// entirely (it has likely exited mid-walk); a missing oom_score_adj
// degrades to 0 rather than disqualifying.
func (e *Enumerator) readOne(pid int) (Record, bool) {
	pidDir := filepath.Join(e.ProcRoot, strconv.Itoa(pid))

	statData, err := os.ReadFile(filepath.Join(pidDir, "stat"))
	if err != nil {
		return Record{}, false
	}

	name, rssBytes, ok := parseStat(string(statData))
	if !ok {
		return Record{}, false
	}

	return Record{
		PID:         pid,
		Name:        name,
		RSSBytes:    rssBytes,
		OOMScoreAdj: readOOMScoreAdj(pidDir),
		Cgroup:      e.Resolver.Resolve(pid),
	}, true
}

// parseStat extracts comm and RSS (in pages, field 24) from the
// contents of /proc/<pid>/stat. comm is delimited by the last matching
// parens because the command name itself may contain spaces or parens.
func parseStat(stat string) (name string, rssBytes uint64, ok bool) {
	open := strings.IndexByte(stat, '(')
	shut := strings.LastIndexByte(stat, ')')
	if open < 0 || shut < 0 || shut < open {
		return "", 0, false
	}
	name = stat[open+1 : shut]

	rest := strings.Fields(stat[shut+1:])
	// rest[0]=state rest[1]=ppid ... rest[21]=rss (field 24 overall,
	// 0-indexed from rest[0]=field3).
	const rssFieldIndex = 21
	if len(rest) <= rssFieldIndex {
		return name, 0, true
	}
	pages, err := strconv.ParseUint(rest[rssFieldIndex], 10, 64)
	if err != nil {
		return name, 0, true
	}
	return name, pages * pageSize, true
}

// readOOMScoreAdj reads and clamps the signed OOM adjustment. Any
// failure (missing file, malformed content, permission denied)
// defaults to 0 rather than erroring the whole record.
func readOOMScoreAdj(pidDir string) int {
	data, err := os.ReadFile(filepath.Join(pidDir, "oom_score_adj"))
	if err != nil {
		return 0
	}
	val, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return clamp(val, -1000, 1000)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
