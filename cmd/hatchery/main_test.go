package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["run"])
	require.True(t, names["print-config"])
	require.True(t, names["version"])
}

func TestRunCommandRequiresProgramArgument(t *testing.T) {
	err := runCmd.Args(runCmd, nil)
	require.Error(t, err)
}
