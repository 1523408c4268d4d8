package process

import (
	"testing"

	"github.com/memsentinel/memsentineld/internal/cgroup"
	"github.com/stretchr/testify/require"
)

func rec(pid int, name string, rss uint64, oomAdj int, slice cgroup.Slice, unit string) Record {
	return Record{
		PID:         pid,
		Name:        name,
		RSSBytes:    rss,
		OOMScoreAdj: oomAdj,
		Cgroup:      cgroup.Info{Slice: slice, Unit: unit},
	}
}

func TestScoreExcludesByNameSubstring(t *testing.T) {
	records := []Record{
		rec(1, "sshd", 50*1024*1024, 0, cgroup.SliceSystem, "sshd.service"),
		rec(2, "firefox", 500*1024*1024, 0, cgroup.SliceUser, "app.scope"),
	}
	out := Score(records, ScoreConfig{
		ExcludeNames: []string{"sshd"},
		TotalBytes:   1024 * 1024 * 1024,
	})
	require.Len(t, out, 1)
	require.Equal(t, 2, out[0].PID)
}

func TestScoreProtectionOverridesHigherScore(t *testing.T) {
	a := rec(1, "sshd", 2*1024*1024*1024, 0, cgroup.SliceSystem, "sshd.service")
	b := rec(2, "app", 1*1024*1024*1024, 0, cgroup.SliceUser, "app.scope")

	out := Score([]Record{a, b}, ScoreConfig{
		ProtectedUnits: []string{"sshd.service"},
		TotalBytes:     4 * 1024 * 1024 * 1024,
	})
	require.Len(t, out, 1)
	require.Equal(t, 2, out[0].PID)
}

func TestScoreZeroTotalBytesSkipsScoring(t *testing.T) {
	out := Score([]Record{rec(1, "x", 1000, 0, cgroup.SliceUser, "")}, ScoreConfig{TotalBytes: 0})
	require.Empty(t, out)
}

func TestScoreOrderingDescendingBadness(t *testing.T) {
	big := rec(1, "big", 900*1024*1024, 0, cgroup.SliceUser, "")
	small := rec(2, "small", 100*1024*1024, 0, cgroup.SliceUser, "")

	out := Score([]Record{small, big}, ScoreConfig{TotalBytes: 1024 * 1024 * 1024})
	require.Len(t, out, 2)
	require.Equal(t, 1, out[0].PID)
	require.Equal(t, 2, out[1].PID)
}

func TestScoreTieBreakByRSSThenPID(t *testing.T) {
	a := rec(5, "a", 100*1024*1024, 0, cgroup.SliceUser, "")
	b := rec(3, "b", 100*1024*1024, 0, cgroup.SliceUser, "")
	c := rec(1, "c", 200*1024*1024, 0, cgroup.SliceUser, "")

	out := Score([]Record{a, b, c}, ScoreConfig{TotalBytes: 1024 * 1024 * 1024})
	require.Len(t, out, 3)
	require.Equal(t, 1, out[0].PID) // higher RSS wins first
	require.Equal(t, 3, out[1].PID) // tie on badness/rss -> lower pid first
	require.Equal(t, 5, out[2].PID)
}

func TestBadnessNegativeOomAdjHalvesMagnitude(t *testing.T) {
	withNegative := rec(1, "a", 100*1024*1024, -100, cgroup.SliceUser, "")
	withoutAdj := rec(2, "b", 100*1024*1024, 0, cgroup.SliceUser, "")

	out := Score([]Record{withNegative, withoutAdj}, ScoreConfig{TotalBytes: 1024 * 1024 * 1024})
	require.Len(t, out, 2)
	// negative adj reduces badness by half its magnitude, not to zero
	require.Less(t, out[1].BadnessScore, out[0].BadnessScore)
	require.InDelta(t, out[0].BadnessScore-50, out[1].BadnessScore, 0.001)
}

func TestBadnessPositiveOomAdjAddsFull(t *testing.T) {
	rec1 := rec(1, "a", 0, 500, cgroup.SliceInit, "")
	out := Score([]Record{rec1}, ScoreConfig{TotalBytes: 1024})
	require.Len(t, out, 1)
	require.InDelta(t, 500, out[0].BadnessScore, 0.001) // 0 rss + 500 oom + 0 cgroup(init)
}

func TestParseStatExtractsCommAndRSS(t *testing.T) {
	// comm "weird (na)me" intentionally contains parens/spaces.
	stat := "1234 (weird (na)me) S 1 1234 1234 0 -1 4194560 100 0 0 0 " +
		"10 5 0 0 20 0 4 0 1000 1000000 2560 18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 2 0 0 0 0 0"
	name, rss, ok := parseStat(stat)
	require.True(t, ok)
	require.Equal(t, "weird (na)me", name)
	require.EqualValues(t, 2560*pageSize, rss)
}

func TestClamp(t *testing.T) {
	require.Equal(t, -1000, clamp(-5000, -1000, 1000))
	require.Equal(t, 1000, clamp(5000, -1000, 1000))
	require.Equal(t, 3, clamp(3, -1000, 1000))
}
