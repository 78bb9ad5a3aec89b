package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modular-api/core/internal/models"
)

func TestPolicyAdd_CreatesPolicyFromStatementsFile(t *testing.T) {
	cli := newTestCLI(t)
	path := writeTempFile(t, `[{"effect":"allow","module":"files","resources":["*"]}]`)

	err := cli.run(t, newPolicyAddCmd, []string{"files-policy", "--statements", path})
	require.NoError(t, err)

	var got models.Policy
	require.NoError(t, json.Unmarshal(cli.out.Bytes(), &got))
	assert.Equal(t, "files-policy", got.PolicyName)
	assert.Len(t, got.Statements, 1)
}

func TestPolicyDescribe_ReturnsCreatedPolicy(t *testing.T) {
	cli := newTestCLI(t)
	path := writeTempFile(t, `[{"effect":"allow","module":"files","resources":["*"]}]`)
	require.NoError(t, cli.run(t, newPolicyAddCmd, []string{"files-policy", "--statements", path}))
	cli.out.Reset()

	err := cli.run(t, newPolicyDescribeCmd, []string{"files-policy"})
	require.NoError(t, err)

	var got models.Policy
	require.NoError(t, json.Unmarshal(cli.out.Bytes(), &got))
	assert.Equal(t, "files-policy", got.PolicyName)
}

func TestPolicyUpdate_ReplacesStatements(t *testing.T) {
	cli := newTestCLI(t)
	path := writeTempFile(t, `[{"effect":"allow","module":"files","resources":["*"]}]`)
	require.NoError(t, cli.run(t, newPolicyAddCmd, []string{"files-policy", "--statements", path}))
	cli.out.Reset()

	newPath := writeTempFile(t, `[{"effect":"deny","module":"files","resources":["delete"]}]`)
	err := cli.run(t, newPolicyUpdateCmd, []string{"files-policy", "--statements", newPath})
	require.NoError(t, err)

	var got models.Policy
	require.NoError(t, json.Unmarshal(cli.out.Bytes(), &got))
	require.Len(t, got.Statements, 1)
	assert.Equal(t, models.EffectDeny, got.Statements[0].Effect)
}

func TestPolicyDelete_RemovesPolicy(t *testing.T) {
	cli := newTestCLI(t)
	path := writeTempFile(t, `[{"effect":"allow","module":"files","resources":["*"]}]`)
	require.NoError(t, cli.run(t, newPolicyAddCmd, []string{"files-policy", "--statements", path}))

	require.NoError(t, cli.run(t, newPolicyDeleteCmd, []string{"files-policy"}))

	err := cli.run(t, newPolicyDescribeCmd, []string{"files-policy"})
	assert.Error(t, err)
}

func TestPolicyDescribe_UnknownNameReturnsError(t *testing.T) {
	cli := newTestCLI(t)
	err := cli.run(t, newPolicyDescribeCmd, []string{"does-not-exist"})
	assert.Error(t, err)
}
