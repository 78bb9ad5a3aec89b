package identity

import (
	"context"
	"time"

	"github.com/modular-api/core/internal/integrity"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/repository"
)

// PolicyService is the CRUD surface for policies, enforcing the three
// identity invariants: hash recomputation on mutation, name validation,
// and synchronous reference checks.
type PolicyService interface {
	Create(ctx context.Context, p *models.Policy) error
	Update(ctx context.Context, p *models.Policy) error
	Get(ctx context.Context, name string) (*models.Policy, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*models.Policy, error)
}

type policyService struct {
	repo      repository.PolicyRepository
	integrity *integrity.Service
}

// NewPolicyService builds a PolicyService.
func NewPolicyService(repo repository.PolicyRepository, integritySvc *integrity.Service) PolicyService {
	return &policyService{repo: repo, integrity: integritySvc}
}

func (s *policyService) Create(ctx context.Context, p *models.Policy) error {
	if !models.ValidName(p.PolicyName) {
		return &models.InvalidNameError{Field: "policy_name", Value: p.PolicyName}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.CreationDate = now
	p.LastModificationDate = now
	if p.State == "" {
		p.State = models.StateActivated
	}
	p.Hash = s.integrity.Fingerprint(policyFields(p))
	return s.repo.Create(ctx, p)
}

func (s *policyService) Update(ctx context.Context, p *models.Policy) error {
	if !models.ValidName(p.PolicyName) {
		return &models.InvalidNameError{Field: "policy_name", Value: p.PolicyName}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	existing, err := s.repo.Get(ctx, p.PolicyName)
	if err != nil {
		return err
	}
	p.CreationDate = existing.CreationDate
	p.LastModificationDate = time.Now().UTC()
	p.Hash = s.integrity.Fingerprint(policyFields(p))
	return s.repo.Update(ctx, p)
}

func (s *policyService) Get(ctx context.Context, name string) (*models.Policy, error) {
	p, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	p.Compromised = !s.integrity.Verify(policyFields(p), p.Hash)
	return p, nil
}

func (s *policyService) Delete(ctx context.Context, name string) error {
	return s.repo.Delete(ctx, name)
}

func (s *policyService) List(ctx context.Context) ([]*models.Policy, error) {
	policies, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		p.Compromised = !s.integrity.Verify(policyFields(p), p.Hash)
	}
	return policies, nil
}

func policyFields(p *models.Policy) map[string]interface{} {
	statements := make([]interface{}, len(p.Statements))
	for i, st := range p.Statements {
		statements[i] = map[string]interface{}{
			"effect":      string(st.Effect),
			"module":      st.Module,
			"resources":   st.Resources,
			"description": st.Description,
		}
	}
	return map[string]interface{}{
		"policy_name": p.PolicyName,
		"statements":  statements,
		"state":       string(p.State),
	}
}
