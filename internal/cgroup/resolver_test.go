package cgroup

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCgroupFile(t *testing.T, procRoot string, pid int, content string) {
	t.Helper()
	dir := filepath.Join(procRoot, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup"), []byte(content), 0o644))
}

func TestParseLineUserSlice(t *testing.T) {
	info, err := ParseLine("0::/user.slice/user-1000.slice/user@1000.service/app.slice/app-firefox.scope\n")
	require.NoError(t, err)
	require.Equal(t, SliceUser, info.Slice)
	require.Equal(t, "app-firefox.scope", info.Unit)
}

func TestParseLineSystemSlice(t *testing.T) {
	info, err := ParseLine("0::/system.slice/sshd.service\n")
	require.NoError(t, err)
	require.Equal(t, SliceSystem, info.Slice)
	require.Equal(t, "sshd.service", info.Unit)
}

func TestParseLineMachineSlice(t *testing.T) {
	info, err := ParseLine("0::/machine.slice/libvirt-1.scope\n")
	require.NoError(t, err)
	require.Equal(t, SliceMachine, info.Slice)
}

func TestParseLineInitScope(t *testing.T) {
	info, err := ParseLine("0::/init.scope\n")
	require.NoError(t, err)
	require.Equal(t, SliceInit, info.Slice)
	require.Equal(t, "init.scope", info.Unit)
}

func TestParseLineUnknown(t *testing.T) {
	info, err := ParseLine("0::/some/other/path\n")
	require.NoError(t, err)
	require.Equal(t, SliceUnknown, info.Slice)
	require.Empty(t, info.Unit)
}

func TestParseLineMissingUnifiedLine(t *testing.T) {
	_, err := ParseLine("1:cpu:/foo\n2:memory:/bar\n")
	require.ErrorIs(t, err, ErrNoUnifiedLine)
}

func TestIsProtectedExactMatch(t *testing.T) {
	info := Info{Unit: "sshd.service"}
	require.True(t, info.IsProtected([]string{"sentinel.service", "sshd.service"}))
	require.False(t, info.IsProtected([]string{"sentinel.service"}))
}

func TestIsProtectedNoUnit(t *testing.T) {
	info := Info{}
	require.False(t, info.IsProtected([]string{"sshd.service"}))
}

func TestSlicePriorityOrdering(t *testing.T) {
	require.Greater(t, SliceUser.Priority(), SliceMachine.Priority())
	require.Greater(t, SliceMachine.Priority(), SliceUnknown.Priority())
	require.Greater(t, SliceUnknown.Priority(), SliceSystem.Priority())
	require.Greater(t, SliceSystem.Priority(), SliceInit.Priority())
}

func TestResolverResolveFromFile(t *testing.T) {
	dir := t.TempDir()
	writeCgroupFile(t, dir, 42, "0::/user.slice/user-1000.slice/app.slice/app-firefox.scope\n")

	r := NewResolver(dir)
	info := r.Resolve(42)
	require.Equal(t, SliceUser, info.Slice)
	require.Equal(t, "app-firefox.scope", info.Unit)
}

func TestResolverMissingProcessYieldsUnknownNoError(t *testing.T) {
	r := NewResolver(t.TempDir())
	info := r.Resolve(99999)
	require.Equal(t, SliceUnknown, info.Slice)
	require.Empty(t, info.Unit)
}
