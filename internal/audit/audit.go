// Package audit records every command invocation as an append-only,
// tamper-evident entry and exposes it for later querying by operators.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/modular-api/core/internal/integrity"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/pkg/metrics"
	"github.com/modular-api/core/internal/pkg/redact"
	"github.com/modular-api/core/internal/repository"
)

// Service appends audit records and answers range/filter queries over
// them. Every record's Hash is computed over its redacted fields so a
// later edit of the stored row can be detected without ever storing the
// unredacted parameters twice.
type Service struct {
	repo      repository.AuditRepository
	integrity *integrity.Service
}

// New builds an audit Service backed by repo, fingerprinting records with
// integritySvc.
func New(repo repository.AuditRepository, integritySvc *integrity.Service) *Service {
	return &Service{repo: repo, integrity: integritySvc}
}

// Entry is the input to Record: everything the dispatcher knows about a
// completed (or rejected) command invocation.
type Entry struct {
	Username   string
	Group      string
	Command    string
	Parameters map[string]interface{}
	Result     string
	Summary    string
	Warnings   []string
}

// Record masks sensitive parameters, stamps a fingerprint, and appends the
// entry. It never returns an error for the caller to act on beyond
// logging: a failed audit write must not by itself roll back or block the
// command it describes, since the command has already run.
func (s *Service) Record(ctx context.Context, e Entry) error {
	masked := redact.Parameters(e.Parameters)
	rec := &models.AuditRecord{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Username:   e.Username,
		Group:      e.Group,
		Command:    e.Command,
		Parameters: masked,
		Result:     e.Result,
		Summary:    e.Summary,
		Warnings:   e.Warnings,
	}
	rec.Hash = s.integrity.Fingerprint(fingerprintFields(rec))
	metrics.AuditRecordsTotal.WithLabelValues("written").Inc()
	return s.repo.Create(ctx, rec)
}

// Query returns audit records matching filter, most recent first, capped
// at limit (0 means the repository's default cap). Compromised is
// recomputed for each returned record by re-deriving its fingerprint and
// comparing: it is surfaced, never used to hide the record.
func (s *Service) Query(ctx context.Context, filter repository.AuditFilter, limit int) ([]*models.AuditRecord, error) {
	records, err := s.repo.Query(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		rec.Compromised = !s.integrity.Verify(fingerprintFields(rec), rec.Hash)
		if rec.Compromised {
			metrics.AuditRecordsTotal.WithLabelValues("compromised_on_read").Inc()
		}
	}
	return records, nil
}

func fingerprintFields(rec *models.AuditRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":         rec.ID,
		"timestamp":  rec.Timestamp.Format(time.RFC3339Nano),
		"username":   rec.Username,
		"group":      rec.Group,
		"command":    rec.Command,
		"parameters": rec.Parameters,
		"result":     rec.Result,
		"summary":    rec.Summary,
		"warnings":   rec.Warnings,
	}
}
