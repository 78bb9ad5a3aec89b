package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modular-api/core/internal/models"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(
		newUserAddCmd(a),
		newUserDeleteCmd(a),
		newUserDescribeCmd(a),
		newUserBlockCmd(a),
		newUserUnblockCmd(a),
		newUserChangePasswordCmd(a),
		newUserChangeUsernameCmd(a),
		newUserAddToGroupCmd(a),
		newUserRemoveFromGroupCmd(a),
		newUserSetMetaAttributeCmd(a),
		newUserUpdateMetaAttributeCmd(a),
		newUserDeleteMetaAttributeCmd(a),
		newUserResetMetaCmd(a),
		newUserGetMetaCmd(a),
	)
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user. Omit --password to have one generated and printed once.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := &models.User{Username: args[0]}
			generated, err := a.users.Create(cmd.Context(), u, password)
			if err != nil {
				return err
			}
			out := map[string]interface{}{"user": u}
			if generated != "" {
				out["generated_password"] = generated
			}
			return a.emitJSON(out)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "initial password; generated and returned once if omitted")
	return cmd
}

func newUserDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.Delete(cmd.Context(), args[0])
		},
	}
}

func newUserDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe USERNAME",
		Short: "Show a user's groups, state, meta, and consistency status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.users.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emitJSON(u)
		},
	}
}

func newUserBlockCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "block USERNAME",
		Short: "Block a user and revoke every outstanding token of theirs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.Block(cmd.Context(), args[0], reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the user's state")
	return cmd
}

func newUserUnblockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unblock USERNAME",
		Short: "Unblock a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.Unblock(cmd.Context(), args[0])
		},
	}
}

func newUserChangePasswordCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "change_password USERNAME",
		Short: "Change a user's password and revoke every outstanding token of theirs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.ChangePassword(cmd.Context(), args[0], password)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserChangeUsernameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "change_username OLD NEW",
		Short: "Rename a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.ChangeUsername(cmd.Context(), args[0], args[1])
		},
	}
}

func newUserAddToGroupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add_to_group USERNAME GROUP",
		Short: "Add a user to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.AddGroup(cmd.Context(), args[0], args[1])
		},
	}
}

func newUserRemoveFromGroupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove_from_group USERNAME GROUP",
		Short: "Remove a user from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.RemoveGroup(cmd.Context(), args[0], args[1])
		},
	}
}

func newUserSetMetaAttributeCmd(a *app) *cobra.Command {
	var values []string
	cmd := &cobra.Command{
		Use:   "set_meta_attribute USERNAME KEY",
		Short: "Restrict KEY to a set of allowed values for a user's parameter substitutions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.SetMetaAttribute(cmd.Context(), args[0], args[1], values)
		},
	}
	cmd.Flags().StringSliceVar(&values, "value", nil, "allowed value (repeatable)")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newUserUpdateMetaAttributeCmd(a *app) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "update_meta_attribute USERNAME KEY",
		Short: "Set KEY's auxiliary data (a JSON value injected into backend calls) for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value interface{}
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				return fmt.Errorf("parse --value as JSON: %w", err)
			}
			return a.users.UpdateMetaAttribute(cmd.Context(), args[0], args[1], value)
		},
	}
	cmd.Flags().StringVar(&raw, "value", "null", "JSON-encoded aux value")
	return cmd
}

func newUserDeleteMetaAttributeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete_meta_attribute USERNAME KEY",
		Short: "Remove KEY's allowed_values and aux_data entries for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.DeleteMetaAttribute(cmd.Context(), args[0], args[1])
		},
	}
}

func newUserResetMetaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset_meta USERNAME",
		Short: "Clear all of a user's meta restrictions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.users.ResetMeta(cmd.Context(), args[0])
		},
	}
}

func newUserGetMetaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get_meta USERNAME",
		Short: "Show a user's meta restrictions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.users.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emitJSON(u.Meta)
		},
	}
}
