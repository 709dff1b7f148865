package cli

import (
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/ledger"
	"github.com/spf13/cobra"
)

func newStateCmd(rt *runtime) *cobra.Command {
	var (
		userID string
		state  string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show a user's application pipeline",
		Long: `Show how many jobs a user has in each pipeline state, followed by the
jobs themselves, most recent interaction first.

Examples:
  jobhunter state --user alice
  jobhunter state --user alice --state applied`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return apperr.Configf("user", "--user is required")
			}
			ctx := cmd.Context()

			pipeline, err := rt.backend.Jobs.Pipeline(ctx, userID)
			if err != nil {
				return err
			}
			jobs, err := rt.backend.Jobs.ListUserJobs(ctx, userID, state, limit)
			if err != nil {
				return err
			}

			u := rt.ui
			u.Infof("Pipeline for %s: %d jobs", userID, pipeline.Total)
			for _, s := range ledger.PipelineStates {
				if n := pipeline.Counts[s]; n > 0 {
					u.Printf("  %-20s %d\n", u.State(string(s)), n)
				}
			}
			if len(jobs) == 0 {
				return nil
			}
			u.Printf("\n%-20s  %-36s  %-32s  %-20s  %s\n", "STATE", "JOB", "TITLE", "COMPANY", "LAST")
			for _, j := range jobs {
				id, title, company := "-", "-", "-"
				if j.Job != nil {
					id = j.Job.ID.String()
					title, company = truncate(j.Job.Title, 32), truncate(j.Job.CompanyName, 20)
				}
				u.Printf("%-20s  %-36s  %-32s  %-20s  %s\n",
					u.State(j.State), id, title, company, j.LastInteractionAt.UTC().Format(time.DateTime))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&userID, "user", "u", "", "user id")
	f.StringVarP(&state, "state", "s", "", "only jobs in this state")
	f.IntVarP(&limit, "limit", "n", 0, "maximum jobs listed")
	return cmd
}
