package cli

import (
	"fmt"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/spf13/cobra"
)

func newProvidersCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect and manage job providers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List enabled providers with their sync state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				syncs, err := rt.backend.Providers.ListProviderSyncs(cmd.Context())
				if err != nil {
					return fmt.Errorf("list provider syncs: %w", err)
				}
				printProviders(rt.ui, rt.backend.Providers.Statuses(), syncs)
				return nil
			},
		},
		&cobra.Command{
			Use:   "release <provider>",
			Short: "Lift the quarantine placed on a provider after an auth failure",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := rt.backend.Providers.ReleaseProvider(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("release %s: %w", args[0], err)
				}
				rt.ui.Successf("Released %s; it is picked up on the next ingest tick", args[0])
				return nil
			},
		},
	)
	return cmd
}

func printProviders(u *UI, statuses []source.Status, syncs []*models.ProviderSync) {
	if len(statuses) == 0 {
		u.Warnf("No providers enabled")
		return
	}
	byName := make(map[string]*models.ProviderSync, len(syncs))
	for _, ps := range syncs {
		byName[ps.Provider] = ps
	}

	u.Printf("%-16s %-8s %-20s %-20s  %s\n", "PROVIDER", "MODE", "LAST SYNC", "LAST ATTEMPT", "STATUS")
	for _, st := range statuses {
		mode := "live"
		if st.FixtureMode {
			mode = "fixture"
		}
		ps := byName[st.Provider]
		var lastSync, lastAttempt *time.Time
		if ps != nil {
			lastSync, lastAttempt = ps.LastSuccessfulSync, ps.LastAttemptAt
		}
		u.Printf("%-16s %-8s %-20s %-20s  %s\n", st.Provider, mode,
			formatTime(lastSync), formatTime(lastAttempt), providerStatus(u, st, ps))
	}
}

func providerStatus(u *UI, st source.Status, ps *models.ProviderSync) string {
	switch {
	case ps != nil && ps.Quarantined:
		reason := "auth failure"
		if ps.QuarantineReason != nil {
			reason = *ps.QuarantineReason
		}
		return u.paint(u.Output, "quarantined: "+reason, "1")
	case st.Disabled:
		return u.paint(u.Output, "disabled", "1")
	case st.RateLimited:
		return u.paint(u.Output, fmt.Sprintf("rate limited, retry in %s", st.RetryAfter.Round(time.Second)), "3")
	case ps != nil && ps.LastError != nil && *ps.LastError != "":
		return u.paint(u.Output, "last attempt failed: "+*ps.LastError, "3")
	}
	return u.paint(u.Output, "ok", "2")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.DateTime)
}
