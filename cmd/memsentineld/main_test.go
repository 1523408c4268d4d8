package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCodeForFatalExit(t *testing.T) {
	require.Equal(t, 7, exitCodeFor(fatalExit{code: 7}))
}

func TestExitCodeForGenericErrorDefaultsToOne(t *testing.T) {
	require.Equal(t, 1, exitCodeFor(errors.New("boom")))
}

func TestFatalExitErrorMessage(t *testing.T) {
	require.Equal(t, "custom", fatalExit{msg: "custom"}.Error())
	require.Equal(t, "memsentineld: fatal error", fatalExit{}.Error())
}
