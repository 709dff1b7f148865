package cli

import (
	"fmt"
	"os"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/spf13/cobra"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

func newMatchCmd(rt *runtime) *cobra.Command {
	var (
		profilePath string
		userID      string
		top         int
		jobs        []string
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Rank jobs against a candidate profile",
		Long: `Score jobs against a candidate profile and print the best matches.

The profile is a JSON file; comments and trailing commas are allowed.
Candidates are the --job ids when given, otherwise the user's latest search.

Examples:
  jobhunter match --profile me.json
  jobhunter match --profile me.json --job 3f6c... --job 9a1d... --top 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := loadProfile(profilePath)
			if err != nil {
				return err
			}
			ids, err := parseJobIDs(jobs)
			if err != nil {
				return err
			}
			res, err := rt.backend.Jobs.Match(cmd.Context(), jobsearch.MatchParams{
				UserID:          userID,
				Profile:         profile,
				CandidateJobIDs: ids,
				Top:             top,
			})
			if err != nil {
				return err
			}
			printMatches(rt.ui, res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&profilePath, "profile", "P", "", "candidate profile file")
	f.StringVarP(&userID, "user", "u", defaultCLIUser, "user whose pipeline deprioritizes results")
	f.IntVarP(&top, "top", "n", 0, "number of results (default from config)")
	f.StringSliceVarP(&jobs, "job", "j", nil, "candidate job id (repeatable)")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

// loadProfile reads a candidate profile written as JSON5.
func loadProfile(path string) (*models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", apperr.ErrProfileInvalid, path, err)
	}
	var p models.Profile
	if err := json5.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", apperr.ErrProfileInvalid, path, err)
	}
	return &p, nil
}

func printMatches(u *UI, res *jobsearch.MatchResponse) {
	if res.SearchID != nil {
		u.Infof("Candidates from search %s", res.SearchID)
	}
	if len(res.Results) == 0 {
		u.Warnf("No matches")
		return
	}
	for i, r := range res.Results {
		u.Printf("%2d. %s  %-36s  %s\n", i+1, u.Score(r.CompositeScore), r.JobID, r.Domain)
		if r.Multiplier != 0 && r.Multiplier != 1 {
			u.Printf("    pipeline multiplier x%.1f\n", r.Multiplier)
		}
		for _, why := range r.Rationale {
			u.Printf("    - %s\n", why)
		}
		if est := r.SalaryEstimate; est != nil {
			u.Printf("    salary %.0f-%.0f %s/%s (%s)\n", est.Min, est.Max, est.Currency, est.Period, est.Confidence)
		}
	}
}
