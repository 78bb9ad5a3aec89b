package main

import (
	"github.com/spf13/cobra"

	"github.com/modular-api/core/internal/models"
)

func newGroupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}
	cmd.AddCommand(
		newGroupAddCmd(a),
		newGroupAddPolicyCmd(a),
		newGroupDeletePolicyCmd(a),
		newGroupDescribeCmd(a),
		newGroupDeleteCmd(a),
	)
	return cmd
}

func newGroupAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := &models.Group{GroupName: args[0], State: models.StateActivated}
			if err := a.groups.Create(cmd.Context(), g); err != nil {
				return err
			}
			return a.emitJSON(g)
		},
	}
}

func newGroupAddPolicyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add_policy GROUP POLICY",
		Short: "Attach a policy to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.groups.AddPolicy(cmd.Context(), args[0], args[1])
		},
	}
}

func newGroupDeletePolicyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete_policy GROUP POLICY",
		Short: "Detach a policy from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.groups.RemovePolicy(cmd.Context(), args[0], args[1])
		},
	}
}

func newGroupDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe NAME",
		Short: "Show a group's policy set and consistency status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.groups.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emitJSON(g)
		},
	}
}

func newGroupDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.groups.Delete(cmd.Context(), args[0])
		},
	}
}
