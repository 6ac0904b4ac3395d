package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/asquebay/leadbase-service/internal/cache"
	"github.com/asquebay/leadbase-service/internal/model"
)

// dashboardScope - ключ сводки в сессионном хранилище
const dashboardScope = "dashboardCache"

func dashboardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the admin dashboard summary (cached for the session)",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			refresh, _ := cmd.Flags().GetBool("refresh")
			if r := model.Role(role); r != model.RoleSuperadmin && r != model.RoleAdmin {
				return fmt.Errorf("--role must be superadmin or admin")
			}
			return a.runDashboard(cmd.Context(), model.Role(role), refresh)
		},
	}
	cmd.Flags().String("role", string(model.RoleAdmin), "superadmin or admin")
	cmd.Flags().Bool("refresh", false, "show cached data and refresh it in the background")
	return cmd
}

func (a *app) runDashboard(ctx context.Context, role model.Role, refresh bool) error {
	api := a.client()
	coordinator := cache.NewCoordinator[model.DashboardSummary](a.sessionStore(), a.log, cache.WithTTL(a.cfg.CacheTTL))
	defer coordinator.Close()

	state, err := coordinator.GetOrFetch(ctx, cache.Request[model.DashboardSummary]{
		Scope:     dashboardScope,
		Params:    cache.Params{"role": string(role)},
		Navigated: refresh,
		Fetch: func(ctx context.Context) (model.DashboardSummary, error) {
			return api.Dashboard(ctx, role, false)
		},
	})
	if err != nil {
		return err
	}

	printSummary(a.out, state.Data, state.FetchedAt)
	if !state.Refreshing {
		return nil
	}

	fmt.Fprintln(a.out, "refreshing...")
	coordinator.Wait()

	after := coordinator.State(dashboardScope)
	if after.Err != nil {
		fmt.Fprintf(a.out, "refresh failed, showing cached data: %v\n", after.Err)
		return nil
	}
	printSummary(a.out, after.Data, after.FetchedAt)
	return nil
}

func printSummary(w io.Writer, s model.DashboardSummary, fetchedAt time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Contacts:\t%d\n", s.ContactsCount)
	fmt.Fprintf(tw, "Companies:\t%d\n", s.CompaniesCount)
	fmt.Fprintf(tw, "Admin users:\t%d\n", s.AdminUsersCount)
	if s.LastImportDate != nil {
		fmt.Fprintf(tw, "Last import:\t%s\n", s.LastImportDate.Local().Format(time.DateTime))
	} else {
		fmt.Fprintf(tw, "Last import:\t-\n")
	}
	fmt.Fprintf(tw, "As of:\t%s\n", fetchedAt.Local().Format(time.DateTime))
	tw.Flush()

	if len(s.ActivityLogs) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent activity:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, l := range s.ActivityLogs {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", l.CreatedAt.Local().Format(time.DateTime), l.Action, l.Details)
	}
	tw.Flush()
}
