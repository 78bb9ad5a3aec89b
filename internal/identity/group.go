package identity

import (
	"context"
	"errors"
	"time"

	"github.com/modular-api/core/internal/integrity"
	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/repository"
)

// GroupService is the CRUD surface for groups, plus the policy
// attach/detach operations that validate the referenced policy exists at
// the time of the call.
type GroupService interface {
	Create(ctx context.Context, g *models.Group) error
	Get(ctx context.Context, name string) (*models.Group, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*models.Group, error)
	AddPolicy(ctx context.Context, groupName, policyName string) error
	RemovePolicy(ctx context.Context, groupName, policyName string) error
}

type groupService struct {
	repo      repository.GroupRepository
	policies  repository.PolicyRepository
	integrity *integrity.Service
}

// NewGroupService builds a GroupService. policies is consulted to verify a
// policy exists before it is attached to a group.
func NewGroupService(repo repository.GroupRepository, policies repository.PolicyRepository, integritySvc *integrity.Service) GroupService {
	return &groupService{repo: repo, policies: policies, integrity: integritySvc}
}

func (s *groupService) Create(ctx context.Context, g *models.Group) error {
	if !models.ValidName(g.GroupName) {
		return &models.InvalidNameError{Field: "group_name", Value: g.GroupName}
	}
	for _, policyName := range g.Policies {
		if err := s.requirePolicy(ctx, policyName); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	g.CreationDate = now
	g.LastModificationDate = now
	if g.State == "" {
		g.State = models.StateActivated
	}
	g.Hash = s.integrity.Fingerprint(groupFields(g))
	return s.repo.Create(ctx, g)
}

func (s *groupService) Get(ctx context.Context, name string) (*models.Group, error) {
	g, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	g.Compromised = !s.integrity.Verify(groupFields(g), g.Hash)
	return g, nil
}

func (s *groupService) Delete(ctx context.Context, name string) error {
	return s.repo.Delete(ctx, name)
}

func (s *groupService) List(ctx context.Context) ([]*models.Group, error) {
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		g.Compromised = !s.integrity.Verify(groupFields(g), g.Hash)
	}
	return groups, nil
}

func (s *groupService) AddPolicy(ctx context.Context, groupName, policyName string) error {
	if err := s.requirePolicy(ctx, policyName); err != nil {
		return err
	}
	g, err := s.repo.Get(ctx, groupName)
	if err != nil {
		return err
	}
	g.AddPolicy(policyName)
	g.LastModificationDate = time.Now().UTC()
	g.Hash = s.integrity.Fingerprint(groupFields(g))
	return s.repo.Update(ctx, g)
}

func (s *groupService) RemovePolicy(ctx context.Context, groupName, policyName string) error {
	g, err := s.repo.Get(ctx, groupName)
	if err != nil {
		return err
	}
	g.RemovePolicy(policyName)
	g.LastModificationDate = time.Now().UTC()
	g.Hash = s.integrity.Fingerprint(groupFields(g))
	return s.repo.Update(ctx, g)
}

func (s *groupService) requirePolicy(ctx context.Context, policyName string) error {
	_, err := s.policies.Get(ctx, policyName)
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrReferencedEntityGone
	}
	return err
}

func groupFields(g *models.Group) map[string]interface{} {
	return map[string]interface{}{
		"group_name": g.GroupName,
		"policies":   g.Policies,
		"state":      string(g.State),
	}
}
