package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const describeTestDescriptor = `
module_name: files
cli_path: /usr/local/bin/files
mount_point: /files
version: 1.0.0
commands:
  - name: list
    kind: command
    route:
      method: GET
      path: /files/list
  - name: describe
    kind: command
    describe: true
    route:
      method: GET
      path: /files/describe
`

func installDescriptor(t *testing.T, cli *testCLI, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "module.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	require.NoError(t, cli.run(t, newInstallCmd, []string{path}))
	return path
}

func TestInstall_AddsModuleToRegistry(t *testing.T) {
	cli := newTestCLI(t)
	installDescriptor(t, cli, describeTestDescriptor)

	mods := cli.a.registry.List()
	require.Len(t, mods, 1)
	assert.Equal(t, "files", mods[0].ModuleName)
}

func TestUninstall_RemovesModuleFromRegistry(t *testing.T) {
	cli := newTestCLI(t)
	installDescriptor(t, cli, describeTestDescriptor)

	require.NoError(t, cli.run(t, newUninstallCmd, []string{"files"}))
	assert.Empty(t, cli.a.registry.List())
}

func TestDescribe_NoArgsListsInstalledModules(t *testing.T) {
	cli := newTestCLI(t)
	installDescriptor(t, cli, describeTestDescriptor)

	require.NoError(t, cli.run(t, newDescribeCmd, nil))
	assert.Contains(t, cli.out.String(), "files")
}

func TestDescribe_WithModuleNameShowsUnfilteredCommandTree(t *testing.T) {
	cli := newTestCLI(t)
	installDescriptor(t, cli, describeTestDescriptor)

	require.NoError(t, cli.run(t, newDescribeCmd, []string{"files"}))
	out := cli.out.String()
	assert.Contains(t, out, "list")
	assert.Contains(t, out, "describe")
}

func TestDescribe_UnknownModuleReturnsError(t *testing.T) {
	cli := newTestCLI(t)
	err := cli.run(t, newDescribeCmd, []string{"nonexistent"})
	assert.Error(t, err)
}
