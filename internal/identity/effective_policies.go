package identity

import (
	"context"
	"errors"

	"github.com/modular-api/core/internal/models"
)

// EffectivePolicies resolves the union of policy statements across every
// group user belongs to, skipping any group or policy record whose
// integrity hash no longer verifies: a compromised record is never used
// for an authorization decision, though Get/List still surface it for
// describe and audit purposes.
func EffectivePolicies(ctx context.Context, groups GroupService, policies PolicyService, user *models.User) ([]*models.Policy, error) {
	seen := make(map[string]bool)
	var effective []*models.Policy
	for _, groupName := range user.Groups {
		g, err := groups.Get(ctx, groupName)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if g.Compromised || g.IsBlocked() {
			continue
		}
		for _, policyName := range g.Policies {
			if seen[policyName] {
				continue
			}
			seen[policyName] = true
			p, err := policies.Get(ctx, policyName)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if p.Compromised {
				continue
			}
			effective = append(effective, p)
		}
	}
	return effective, nil
}
