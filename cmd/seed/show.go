package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/internal/seed"
	"derbent-workflow/backend/pkg/models"
)

func newShowCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the tenant's workflows and their transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer e.release()

			domain := firstNonEmpty(opts.domain, defaultDomain)
			tenant, err := e.store.GetTenantByDomain(ctx, strings.ToLower(domain))
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("no tenant for domain %s", domain)
			}
			if err != nil {
				return err
			}
			return showTenant(ctx, cmd.OutOrStdout(), e, models.Actor{TenantID: tenant.ID, UserID: seedUser}, tenant)
		},
	}
}

func showTenant(ctx context.Context, out io.Writer, e *env, actor models.Actor, tenant *models.Tenant) error {
	statuses, err := e.statuses.ListStatuses(ctx, actor)
	if err != nil {
		return err
	}
	roles, err := e.access.ListRoles(ctx, actor)
	if err != nil {
		return err
	}
	workflows, err := e.workflows.ListWorkflows(ctx, actor)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s\n\n", Highlight.Sprint(tenant.Name), Muted.Sprint(tenant.Domain))

	seed.SortStatuses(statuses)
	statusRows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		statusRows = append(statusRows, []string{st.Name, fmt.Sprint(st.SortOrder), flagList(st)})
	}
	fmt.Fprintln(out, renderTable([]string{"Status", "Order", "Flags"}, statusRows, []columnAlignment{alignLeft, alignRight, alignLeft}))

	if len(workflows) == 0 {
		fmt.Fprintln(out, Warning.Sprint("No workflows configured"))
		return nil
	}
	names := nameIndex(statuses, roles)
	for _, wf := range workflows {
		edges, err := e.workflows.FindByWorkflow(ctx, actor, wf.ID)
		if err != nil {
			return err
		}
		state := "active"
		if !wf.Active {
			state = "inactive"
		}
		fmt.Fprintf(out, "\n%s %s\n", Highlight.Sprint(wf.Name), Muted.Sprint(state))
		fmt.Fprintln(out, renderTable([]string{"From", "To", "Role", "Initial"}, transitionRows(edges, names), nil))
	}
	return nil
}

func nameIndex(statuses []*models.Status, roles []*models.Role) map[string]string {
	names := make(map[string]string, len(statuses)+len(roles))
	for _, st := range statuses {
		names[st.ID] = st.Name
	}
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	return names
}

func transitionRows(edges []*models.Transition, names map[string]string) [][]string {
	rows := make([][]string, 0, len(edges))
	for _, edge := range edges {
		role := "any"
		if !edge.Wildcard() {
			role = lookup(names, edge.RoleID)
		}
		initial := ""
		if edge.Initial {
			initial = "yes"
		}
		rows = append(rows, []string{lookup(names, edge.FromStatusID), lookup(names, edge.ToStatusID), role, initial})
	}
	return rows
}

func lookup(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id
}

func flagList(st *models.Status) string {
	var flags []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"in progress", st.Flags.InProgress},
		{"paused", st.Flags.Paused},
		{"completed", st.Flags.Completed},
		{"cancelled", st.Flags.Cancelled},
		{"closed", st.Flags.Closed},
		{"final", st.Flags.Final},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	if st.NonDeletable {
		flags = append(flags, "protected")
	}
	return strings.Join(flags, ", ")
}
