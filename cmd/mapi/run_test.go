package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modular-api/core/internal/dispatcher"
)

func TestRun_DispatchesThroughSamePipelineAsHTTPSurface(t *testing.T) {
	cli := newTestCLI(t)
	installDescriptor(t, cli, describeTestDescriptor)
	require.NoError(t, cli.run(t, newUserAddCmd, []string{"alice", "--password", "Str0ng!Passw0rd"}))
	cli.out.Reset()
	grantAllow(t, cli, "alice", "files", []string{"*"})

	err := cli.run(t, newRunCmd, []string{"/files/list", "--username", "alice", "--password", "Str0ng!Passw0rd"})
	require.NoError(t, err)
	assert.Contains(t, cli.out.String(), "alice")
}

func TestRun_MissingUsernameIsError(t *testing.T) {
	cli := newTestCLI(t)
	installDescriptor(t, cli, describeTestDescriptor)

	err := cli.run(t, newRunCmd, []string{"/files/list"})
	assert.Error(t, err)
}

func TestRun_DeniedCallReturnsDispatcherError(t *testing.T) {
	cli := newTestCLI(t)
	installDescriptor(t, cli, describeTestDescriptor)
	require.NoError(t, cli.run(t, newUserAddCmd, []string{"alice", "--password", "Str0ng!Passw0rd"}))

	err := cli.run(t, newRunCmd, []string{"/files/list", "--username", "alice", "--password", "Str0ng!Passw0rd"})
	var denied dispatcher.ErrDenied
	require.ErrorAs(t, err, &denied)
}

func TestRun_ParamsFromFileAreForwarded(t *testing.T) {
	cli := newTestCLI(t)
	installDescriptor(t, cli, describeTestDescriptor)
	require.NoError(t, cli.run(t, newUserAddCmd, []string{"alice", "--password", "Str0ng!Passw0rd"}))
	cli.out.Reset()
	grantAllow(t, cli, "alice", "files", []string{"*"})
	path := writeTempFile(t, `{"name":"report.csv"}`)

	err := cli.run(t, newRunCmd, []string{"/files/list", "--username", "alice", "--password", "Str0ng!Passw0rd", "--params", path})
	require.NoError(t, err)
}
