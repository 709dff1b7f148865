package cli

import (
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/spf13/cobra"
)

const defaultCLIUser = "cli"

func newSearchCmd(rt *runtime) *cobra.Command {
	var (
		p         jobsearch.SearchParams
		salaryMin float64
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalogue",
		Long: `Run a ranked keyword search over the deduplicated catalogue.

Examples:
  jobhunter search -k "business analyst" -l Zurich
  jobhunter search -k analyst --experience-level mid --active -n 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("salary-min") {
				p.Filter.SalaryMin = &salaryMin
			}
			res, err := rt.backend.Jobs.Search(cmd.Context(), p)
			if err != nil {
				return err
			}
			printSearch(rt.ui, res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&p.UserID, "user", "u", defaultCLIUser, "user the search is recorded for")
	f.StringVarP(&p.Keywords, "keywords", "k", "", "free-text keywords")
	f.StringVarP(&p.Filter.City, "location", "l", "", "city")
	f.IntVarP(&p.Limit, "limit", "n", 0, "page size (default from config)")
	f.StringVar(&p.Cursor, "cursor", "", "cursor from a previous page")
	f.StringVar(&p.Filter.ExperienceLevel, "experience-level", "", "entry, mid, senior or executive")
	f.StringVar(&p.Filter.EmploymentType, "employment-type", "", "full_time, part_time, contract, internship or temporary")
	f.StringVar(&p.Filter.WorkLocationType, "work-location", "", "on_site, remote or hybrid")
	f.Float64Var(&salaryMin, "salary-min", 0, "minimum salary")
	f.BoolVar(&p.Filter.ActiveOnly, "active", false, "only active postings")
	return cmd
}

func printSearch(u *UI, res *jobsearch.SearchResult) {
	u.Infof("Search %s: %d of %d jobs", res.SearchID, len(res.Jobs), res.Total)
	if len(res.Jobs) == 0 {
		return
	}
	u.Printf("%-36s  %-40s  %-24s  %s\n", "JOB", "TITLE", "COMPANY", "LOCATION")
	for _, j := range res.Jobs {
		u.Printf("%-36s  %-40s  %-24s  %s\n", j.ID, truncate(j.Title, 40), truncate(j.CompanyName, 24), location(j.Location))
	}
	if res.NextCursor != "" {
		u.Infof("More results: --cursor %s", res.NextCursor)
	}
}

func location(l models.Location) string {
	var parts []string
	for _, s := range []string{l.City, l.Region, l.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
