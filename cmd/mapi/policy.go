package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modular-api/core/internal/models"
)

func newPolicyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage policies",
	}
	cmd.AddCommand(
		newPolicyAddCmd(a),
		newPolicyUpdateCmd(a),
		newPolicyDescribeCmd(a),
		newPolicyDeleteCmd(a),
	)
	return cmd
}

// readStatements reads the statement list `policy add`/`policy update`
// take from a file: a JSON array matching models.Statement.
func readStatements(path string) ([]models.Statement, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = readAllStdin()
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}
	var statements []models.Statement
	if err := json.Unmarshal(raw, &statements); err != nil {
		return nil, fmt.Errorf("parse statements: %w", err)
	}
	return statements, nil
}

func newPolicyAddCmd(a *app) *cobra.Command {
	var statementsPath string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a policy from a JSON statement list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statements, err := readStatements(statementsPath)
			if err != nil {
				return err
			}
			p := &models.Policy{PolicyName: args[0], Statements: statements, State: models.StateActivated}
			if err := a.policies.Create(cmd.Context(), p); err != nil {
				return err
			}
			return a.emitJSON(p)
		},
	}
	cmd.Flags().StringVar(&statementsPath, "statements", "-", "path to a JSON statement list, or - for stdin")
	return cmd
}

func newPolicyUpdateCmd(a *app) *cobra.Command {
	var statementsPath string
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Replace a policy's statement list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			existing, err := a.policies.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			statements, err := readStatements(statementsPath)
			if err != nil {
				return err
			}
			existing.Statements = statements
			if err := a.policies.Update(cmd.Context(), existing); err != nil {
				return err
			}
			return a.emitJSON(existing)
		},
	}
	cmd.Flags().StringVar(&statementsPath, "statements", "-", "path to a JSON statement list, or - for stdin")
	return cmd
}

func newPolicyDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe NAME",
		Short: "Show a policy's statements and consistency status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.policies.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emitJSON(p)
		},
	}
}

func newPolicyDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.policies.Delete(cmd.Context(), args[0])
		},
	}
}

func readAllStdin() ([]byte, error) {
	return readAll(os.Stdin)
}
