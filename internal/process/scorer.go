package process

import (
	"sort"
	"strings"
)

// Scored is a Record with its computed badness score, ready for
// selection. The first element of a Score() result is the kill target.
type Scored struct {
	Record
	BadnessScore float64
}

// ScoreConfig carries the inputs the Scorer needs beyond the raw
// records: the absolute protection lists and the denominator for the
// RSS fraction term.
type ScoreConfig struct {
	ExcludeNames   []string
	ProtectedUnits []string
	TotalBytes     uint64
}

// Score filters out excluded/protected processes and returns the
// remainder ordered by descending badness, with ties broken by
// descending RSS and then ascending PID — a strict total order. If
// TotalBytes is zero, scoring is skipped and an empty slice is
// returned (the caller is expected to have already forced Healthy
// state in that case, per the "total > 0" invariant).
func Score(records []Record, cfg ScoreConfig) []Scored {
	if cfg.TotalBytes == 0 {
		return nil
	}

	scored := make([]Scored, 0, len(records))
	for _, rec := range records {
		if matchesAny(rec.Name, cfg.ExcludeNames) {
			continue
		}
		if rec.Cgroup.IsProtected(cfg.ProtectedUnits) {
			continue
		}

		scored = append(scored, Scored{
			Record:       rec,
			BadnessScore: badness(rec, cfg.TotalBytes),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.BadnessScore != b.BadnessScore {
			return a.BadnessScore > b.BadnessScore
		}
		if a.RSSBytes != b.RSSBytes {
			return a.RSSBytes > b.RSSBytes
		}
		return a.PID < b.PID
	})

	return scored
}

// badness computes rss_score + oom_score + cgroup_score per the spec's
// formula. Negative oom_score_adj halves its magnitude rather than
// fully protecting the process — only the explicit exclude/protect
// lists are absolute shields.
func badness(rec Record, totalBytes uint64) float64 {
	rssScore := (float64(rec.RSSBytes) / float64(totalBytes)) * 1000

	var oomScore float64
	if rec.OOMScoreAdj >= 0 {
		oomScore = float64(rec.OOMScoreAdj)
	} else {
		oomScore = float64(rec.OOMScoreAdj) * 0.5
	}

	cgroupScore := float64(rec.Cgroup.Slice.Priority())

	return rssScore + oomScore + cgroupScore
}

func matchesAny(name string, substrings []string) bool {
	for _, s := range substrings {
		if s != "" && strings.Contains(name, s) {
			return true
		}
	}
	return false
}
