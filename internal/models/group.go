package models

import "time"

// Group is a named set of policies that can be attached to users.
type Group struct {
	GroupName            string    `json:"group_name" db:"group_name"`
	Policies             []string  `json:"policies" db:"-"` // set of policy_name, order not significant
	State                string    `json:"state" db:"state"`
	CreationDate         time.Time `json:"creation_date" db:"creation_date"`
	LastModificationDate time.Time `json:"last_modification_date" db:"last_modification_date"`
	Hash                 string    `json:"hash" db:"hash"`
	Compromised          bool      `json:"compromised,omitempty" db:"-"`
}

// HasPolicy reports whether policyName is a member of the group's policy set.
func (g *Group) HasPolicy(policyName string) bool {
	for _, p := range g.Policies {
		if p == policyName {
			return true
		}
	}
	return false
}

// AddPolicy inserts policyName into the set if not already present.
func (g *Group) AddPolicy(policyName string) {
	if g.HasPolicy(policyName) {
		return
	}
	g.Policies = append(g.Policies, policyName)
}

// RemovePolicy deletes policyName from the set, if present.
func (g *Group) RemovePolicy(policyName string) {
	for i, p := range g.Policies {
		if p == policyName {
			g.Policies = append(g.Policies[:i], g.Policies[i+1:]...)
			return
		}
	}
}

func (g *Group) IsBlocked() bool {
	return g.State == StateBlocked
}
