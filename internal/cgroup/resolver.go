// Package cgroup maps a process to its control-group slice class and
// unit name, the basis for the Scorer's absolute protection rules and
// the badness score's cgroup-priority term.
package cgroup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Slice is the fixed kill-priority classification of a cgroup path.
type Slice int

const (
	SliceUnknown Slice = iota
	SliceInit
	SliceSystem
	SliceMachine
	SliceUser
)

// Priority returns the slice's kill-priority weight: higher means more
// killable. These values come directly from the spec's fixed table.
func (s Slice) Priority() int {
	switch s {
	case SliceUser:
		return 100
	case SliceMachine:
		return 50
	case SliceUnknown:
		return 25
	case SliceSystem:
		return 10
	case SliceInit:
		return 0
	default:
		return 25
	}
}

func (s Slice) String() string {
	switch s {
	case SliceUser:
		return "user"
	case SliceMachine:
		return "machine"
	case SliceSystem:
		return "system"
	case SliceInit:
		return "init"
	default:
		return "unknown"
	}
}

// Info is the per-process cgroup classification.
type Info struct {
	Slice   Slice
	Unit    string // last .service/.scope/.slice path segment, "" if none
	RawPath string
}

// IsProtected reports whether this process's unit exactly matches one
// of the configured protected unit names. A process with no unit name
// is never protected by this mechanism.
func (i Info) IsProtected(protectedUnits []string) bool {
	if i.Unit == "" {
		return false
	}
	for _, p := range protectedUnits {
		if i.Unit == p {
			return true
		}
	}
	return false
}

// Resolver reads per-process cgroup membership from procfs.
type Resolver struct {
	ProcRoot string
}

// NewResolver builds a Resolver rooted at procRoot (default "/proc").
func NewResolver(procRoot string) *Resolver {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &Resolver{ProcRoot: procRoot}
}

// Resolve classifies pid's cgroup membership. Any failure to read the
// per-process cgroup file (process gone, permission denied, cgroup v1
// only host with no unified "0::" line) yields SliceUnknown with no
// unit and no error — an inaccessible process still falls through to
// normal scoring rather than aborting the scan.
func (r *Resolver) Resolve(pid int) Info {
	path := filepath.Join(r.ProcRoot, strconv.Itoa(pid), "cgroup")
	f, err := os.Open(path)
	if err != nil {
		return Info{Slice: SliceUnknown}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "0::") {
			continue
		}
		idx := strings.Index(line, "0::")
		rawPath := line[idx+len("0::"):]
		return classify(rawPath)
	}

	return Info{Slice: SliceUnknown}
}

// classify applies the fixed substring classification order from the
// spec: user.slice, then system.slice, then machine.slice, then exact
// init.scope, else Unknown.
func classify(rawPath string) Info {
	switch {
	case strings.Contains(rawPath, "/user.slice/"):
		return Info{Slice: SliceUser, Unit: extractUnit(rawPath), RawPath: rawPath}
	case strings.Contains(rawPath, "/system.slice/"):
		return Info{Slice: SliceSystem, Unit: extractUnit(rawPath), RawPath: rawPath}
	case strings.Contains(rawPath, "/machine.slice/"):
		return Info{Slice: SliceMachine, Unit: extractUnit(rawPath), RawPath: rawPath}
	case rawPath == "/init.scope":
		return Info{Slice: SliceInit, Unit: "init.scope", RawPath: rawPath}
	default:
		return Info{Slice: SliceUnknown, RawPath: rawPath}
	}
}

// extractUnit returns the last path segment ending in .service, .scope
// or .slice, or "" if none of the segments qualify.
func extractUnit(rawPath string) string {
	segments := strings.Split(rawPath, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if strings.HasSuffix(seg, ".service") || strings.HasSuffix(seg, ".scope") || strings.HasSuffix(seg, ".slice") {
			return seg
		}
	}
	return ""
}

// ErrNoUnifiedLine is returned by ParseLine when the input contains no
// "0::" hierarchy line. It is currently unused by Resolve (which treats
// this the same as any other read failure — Unknown, no error) but is
// exported so callers parsing cgroup content directly (e.g. tests, or a
// future diagnostic) can tell "no v2 line" apart from a v2 line that
// classified as Unknown. It is the only error ParseLine returns.
var ErrNoUnifiedLine = fmt.Errorf("cgroup: no 0:: hierarchy line found")

// ParseLine classifies a raw /proc/<pid>/cgroup file's contents,
// independent of any filesystem access. It applies the same line
// search and classification as Resolver.Resolve, which reads the file
// itself rather than calling ParseLine.
func ParseLine(content string) (Info, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "0::"); idx >= 0 {
			return classify(line[idx+len("0::"):]), nil
		}
	}
	return Info{Slice: SliceUnknown}, ErrNoUnifiedLine
}
