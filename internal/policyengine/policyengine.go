// Package policyengine evaluates whether a user may invoke a command,
// combining every policy attached (directly or via group membership) to the
// user into a single Deny-precedence decision.
package policyengine

import (
	"strings"

	"github.com/modular-api/core/internal/models"
)

// Decision is the result of an evaluation.
type Decision struct {
	Effect models.Effect
	// MatchedBy names the policy_name of the statement that decided the
	// outcome, for audit and the policy simulator.
	MatchedBy string
}

// Allowed reports whether the decision grants the request.
func (d Decision) Allowed() bool { return d.Effect == models.EffectAllow }

// Request is the tuple being evaluated: can this user invoke moduleName's
// command at resource (the command's dotted path, e.g. "group.command")?
type Request struct {
	Module   string
	Resource string
}

// Evaluate applies Deny-precedence: if any attached statement denies the
// request it is denied outright, regardless of how many statements allow
// it; otherwise it is allowed only if at least one statement explicitly
// allows it. Default is deny.
func Evaluate(policies []*models.Policy, req Request) Decision {
	var allow *models.Policy
	for _, p := range policies {
		if p.State == models.StateBlocked {
			continue
		}
		for _, st := range p.Statements {
			if !matches(st, req) {
				continue
			}
			if st.Effect == models.EffectDeny {
				return Decision{Effect: models.EffectDeny, MatchedBy: p.PolicyName}
			}
			if st.Effect == models.EffectAllow && allow == nil {
				allow = p
			}
		}
	}
	if allow != nil {
		return Decision{Effect: models.EffectAllow, MatchedBy: allow.PolicyName}
	}
	return Decision{Effect: models.EffectDeny}
}

// matches reports whether statement st applies to req. Module matches
// exactly or via "*". Resources use the grammar:
//
//	*              matches any resource in the module
//	cmd            matches exactly "cmd" (a top-level command)
//	group:*        matches any command inside "group"
//	group:cmd      matches exactly "group.cmd"
//	group/sub:*    matches any command inside "group.sub"
//	group/sub:cmd  matches exactly "group.sub.cmd"
func matches(st models.Statement, req Request) bool {
	if st.Module != "*" && st.Module != req.Module {
		return false
	}
	for _, pattern := range st.Resources {
		if resourceMatches(pattern, req.Resource) {
			return true
		}
	}
	return false
}

func resourceMatches(pattern, resource string) bool {
	if pattern == "*" {
		return true
	}
	group, cmd, hasColon := strings.Cut(pattern, ":")
	if !hasColon {
		// A bare command name matches only the identical top-level command.
		return pattern == resource
	}
	group = strings.ReplaceAll(group, "/", ".")
	if cmd == "*" {
		return resource == group || strings.HasPrefix(resource, group+".")
	}
	return resource == group+"."+cmd
}
