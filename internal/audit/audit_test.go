package audit

import (
	"context"
	"testing"

	"github.com/modular-api/core/internal/integrity"
	"github.com/modular-api/core/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	sqliteRepo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })
	return New(sqliteRepo.Repository().Audit, integrity.New([]byte("test-integrity-key")))
}

func TestService_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.Record(ctx, Entry{
		Username:   "alice",
		Group:      "files",
		Command:    "upload",
		Parameters: map[string]interface{}{"path": "/tmp/x", "api_key": "super-secret"},
		Result:     "ok",
		Summary:    "uploaded 1 file",
	})
	require.NoError(t, err)

	records, err := svc.Query(ctx, repository.AuditFilter{Username: "alice"}, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "***REDACTED***", records[0].Parameters["api_key"])
	assert.Equal(t, "/tmp/x", records[0].Parameters["path"])
	assert.False(t, records[0].Compromised)
	assert.NotEmpty(t, records[0].Hash)
}

func TestService_Query_DetectsTamper(t *testing.T) {
	ctx := context.Background()
	sqliteRepo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })
	integritySvc := integrity.New([]byte("test-integrity-key"))
	svc := New(sqliteRepo.Repository().Audit, integritySvc)

	require.NoError(t, svc.Record(ctx, Entry{Username: "bob", Group: "files", Command: "delete", Result: "ok"}))

	records, err := svc.Query(ctx, repository.AuditFilter{Username: "bob"}, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	records[0].Summary = "tampered"
	assert.True(t, integritySvc.Verify(fingerprintFields(records[0]), records[0].Hash) == false)
}
