package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modular-api/core/internal/audit"
)

func TestAudit_FiltersByUsername(t *testing.T) {
	cli := newTestCLI(t)
	ctx := context.Background()

	require.NoError(t, cli.a.auditSvc.Record(ctx, audit.Entry{Username: "alice", Command: "files.list", Result: "ok"}))
	require.NoError(t, cli.a.auditSvc.Record(ctx, audit.Entry{Username: "bob", Command: "files.list", Result: "ok"}))

	require.NoError(t, cli.run(t, newAuditCmd, []string{"--username", "alice"}))
	out := cli.out.String()
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "bob")
}

func TestAudit_InvalidSinceIsError(t *testing.T) {
	cli := newTestCLI(t)
	err := cli.run(t, newAuditCmd, []string{"--since", "not-a-timestamp"})
	assert.Error(t, err)
}
