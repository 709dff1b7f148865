package cli

import (
	"github.com/kiranshivaraju/jobhunter/internal/store"
	"github.com/spf13/cobra"
)

func newJobsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage catalogued jobs",
	}

	var reason string
	deactivate := &cobra.Command{
		Use:   "deactivate <job-id>...",
		Short: "Take jobs out of active search results",
		Long: `Mark jobs inactive. The jobs stay in the catalogue and in users' pipelines
but no longer show up in searches that ask for active jobs. Deactivating an
inactive job is a no-op. A merged id deactivates the job it was merged into.

Examples:
  jobhunter jobs deactivate 3f6c2a1e-4b7d-4c1a-9a55-0d2f8c1b7e90
  jobhunter jobs deactivate 3f6c2a1e-4b7d-4c1a-9a55-0d2f8c1b7e90 --reason filled`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := rt.backend.Admin.DeactivateJob(cmd.Context(), id, reason); err != nil {
					return err
				}
				rt.ui.Successf("Deactivated %s (%s)", id, reason)
			}
			return nil
		},
	}
	deactivate.Flags().StringVarP(&reason, "reason", "r", store.ReasonClosed, "deactivation reason recorded on the job")

	cmd.AddCommand(deactivate)
	return cmd
}
