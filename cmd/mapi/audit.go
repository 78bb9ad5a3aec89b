package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/modular-api/core/internal/repository"
)

func newAuditCmd(a *app) *cobra.Command {
	var (
		username string
		group    string
		command  string
		since    string
		until    string
		result   string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := repository.AuditFilter{Username: username, Group: group, Command: command, ResultIs: result}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("parse --since: %w", err)
				}
				filter.Since = t
			}
			if until != "" {
				t, err := time.Parse(time.RFC3339, until)
				if err != nil {
					return fmt.Errorf("parse --until: %w", err)
				}
				filter.Until = t
			}

			records, err := a.auditSvc.Query(cmd.Context(), filter, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{r.Timestamp.Format(time.RFC3339), r.Username, r.Group, r.Command, r.Result, r.Summary}
			}
			return a.emit(records, table{
				Columns: []string{"Timestamp", "Username", "Group", "Command", "Result", "Summary"},
				Rows:    rows,
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "filter by username")
	cmd.Flags().StringVar(&group, "group", "", "filter by group")
	cmd.Flags().StringVar(&command, "command", "", "filter by dotted command path")
	cmd.Flags().StringVar(&since, "since", "", "RFC3339 lower bound")
	cmd.Flags().StringVar(&until, "until", "", "RFC3339 upper bound")
	cmd.Flags().StringVar(&result, "result", "", "filter by result: ok | error")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum records returned (0 = backend default cap)")
	return cmd
}
