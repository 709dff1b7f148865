package cli

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/cache"
	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/spf13/cobra"
)

func newEventsCmd(rt *runtime) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow interaction events as they are recorded",
		Long: `Print interactions as the API records them, one line each, until
interrupted. Only events recorded after the command starts are shown.

Examples:
  jobhunter events
  jobhunter events --user alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			events, err := rt.backend.Events.Stream(ctx, cache.InteractionsChannel)
			if err != nil {
				return err
			}
			rt.ui.Infof("Following %s (Ctrl-C to stop)", cache.InteractionsChannel)

			for payload := range events {
				var ev jobsearch.InteractionEvent
				if err := json.Unmarshal(payload, &ev); err != nil {
					slog.Warn("skipping malformed interaction event", "error", err)
					continue
				}
				if userID != "" && ev.UserID != userID {
					continue
				}
				rt.ui.Printf("%s  %-16s  %s  %-20s -> %s\n",
					ev.OccurredAt.UTC().Format(time.DateTime), ev.UserID, ev.JobID, ev.Kind, rt.ui.State(string(ev.State)))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "only events of this user")
	return cmd
}
