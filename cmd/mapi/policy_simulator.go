package main

import (
	"github.com/spf13/cobra"

	"github.com/modular-api/core/internal/identity"
	"github.com/modular-api/core/internal/policyengine"
)

// newPolicySimulatorCmd answers "would USER be allowed to invoke
// MODULE.RESOURCE", without dispatching the call, by resolving the user's
// effective policies the same way the dispatcher's authorization step does
// and running them through the same evaluator.
func newPolicySimulatorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy_simulator USERNAME MODULE RESOURCE",
		Short: "Evaluate whether a user's effective policies allow a module/resource call",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, module, resource := args[0], args[1], args[2]

			user, err := a.users.Get(cmd.Context(), username)
			if err != nil {
				return err
			}
			effective, err := identity.EffectivePolicies(cmd.Context(), a.groups, a.policies, user)
			if err != nil {
				return err
			}
			decision := policyengine.Evaluate(effective, policyengine.Request{Module: module, Resource: resource})

			return a.emit(decision, table{
				Columns: []string{"Username", "Module", "Resource", "Effect", "MatchedBy"},
				Rows:    [][]string{{username, module, resource, string(decision.Effect), decision.MatchedBy}},
			})
		},
	}
	return cmd
}
