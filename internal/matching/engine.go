// Package matching scores jobs against a candidate profile.
//
// Scores are a pure function of (job, profile, configuration): no clocks, no
// randomness and no map iteration order leak into the output.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobhunter/internal/config"
	"github.com/kiranshivaraju/jobhunter/internal/textindex"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

const (
	// ScoreCap bounds every composite score, before and after deprioritization.
	ScoreCap = 0.98

	contextHit  = 1.0
	contextMiss = 0.7

	locationMiss = 0.5

	insufficientData = "insufficient data"
)

// Engine is safe for concurrent use; its configuration is immutable.
type Engine struct {
	cfg config.MatchingConfig
}

// NewEngine copies cfg so later mutation by the caller has no effect.
func NewEngine(cfg config.MatchingConfig) *Engine {
	table := make(map[string]config.SalaryBand, len(cfg.SalaryTablePerDomain))
	for k, v := range cfg.SalaryTablePerDomain {
		table[k] = v
	}
	cfg.SalaryTablePerDomain = table
	return &Engine{cfg: cfg}
}

// Score computes the match of job against profile.
func (e *Engine) Score(job *models.Job, profile *models.Profile) models.MatchResult {
	domain := Resolve(profile.TargetRole, job.Title)
	dp := ProfileFor(domain)

	skills := skillSet(profile.Skills)
	reqHit, reqTotal := overlap(skills, job.RequiredSkills)
	prefHit, prefTotal := overlap(skills, job.PreferredSkills)
	domHit, domTotal := overlap(skills, dp.DomainSkills)

	history := strings.Join(profile.JobHistory, " ")
	contextKeyword := ""
	for _, kw := range dp.ExperienceKeywords {
		if textindex.ContainsPhrase(history, kw) {
			contextKeyword = kw
			break
		}
	}

	c := models.MatchComponents{
		RequiredSkillMatch:  ratio(reqHit, reqTotal),
		PreferredSkillMatch: ratio(prefHit, prefTotal),
		DomainContext:       ratio(domHit, domTotal),
		ContextBonus:        contextMiss,
		ExperienceFit:       e.experienceFit(profile.ExperienceYears, job.ExperienceMinYears, job.ExperienceMaxYears),
		LocationFit:         locationFit(job, profile.PreferredLocations),
	}
	if contextKeyword != "" {
		c.ContextBonus = contextHit
	}

	result := models.MatchResult{
		JobID:          job.ID,
		Domain:         string(domain),
		Multiplier:     1.0,
		SalaryEstimate: e.salaryFor(job, domain, profile.ExperienceYears),
	}

	if insufficient(job, profile) {
		c.RequiredSkillMatch = round4(c.RequiredSkillMatch)
		c.PreferredSkillMatch = round4(c.PreferredSkillMatch)
		c.DomainContext = round4(c.DomainContext)
		c.ExperienceFit = round4(c.ExperienceFit)
		c.LocationFit = round4(c.LocationFit)
		result.Components = c
		result.CompositeScore = 0
		result.Rationale = []string{insufficientData}
		return result
	}

	w := e.cfg.Weights
	weighted := w.Required*c.RequiredSkillMatch +
		w.Preferred*c.PreferredSkillMatch +
		w.Domain*c.DomainContext +
		w.Context*c.ContextBonus
	composite := math.Min(weighted*c.ExperienceFit, ScoreCap)

	result.CompositeScore = clamp(round4(composite))
	result.Components = models.MatchComponents{
		RequiredSkillMatch:  round4(c.RequiredSkillMatch),
		PreferredSkillMatch: round4(c.PreferredSkillMatch),
		DomainContext:       round4(c.DomainContext),
		ContextBonus:        round4(c.ContextBonus),
		ExperienceFit:       round4(c.ExperienceFit),
		LocationFit:         round4(c.LocationFit),
	}
	result.Rationale = rationale(domain, reqHit, reqTotal, prefHit, prefTotal, domHit, domTotal,
		contextKeyword, job, profile.ExperienceYears, c.LocationFit)
	return result
}

// insufficient reports the "all inputs missing" case: no skills or history on
// the profile and no skill lists on the job. A job without skill lists still
// scores on domain context and history.
func insufficient(job *models.Job, profile *models.Profile) bool {
	noProfile := len(skillSet(profile.Skills)) == 0 && len(profile.JobHistory) == 0
	noJob := len(job.RequiredSkills) == 0 && len(job.PreferredSkills) == 0
	return noProfile && noJob
}

func (e *Engine) experienceFit(years int, minYears, maxYears *int) float64 {
	if minYears == nil && maxYears == nil {
		return 1.0
	}
	y := float64(years)
	if minYears != nil && y < float64(*minYears) {
		if *minYears <= 0 {
			return 1.0
		}
		return clampRange(y/float64(*minYears), e.cfg.ExperienceClamps.Below, 1.0)
	}
	if maxYears != nil && y > float64(*maxYears) {
		return clampRange(float64(*maxYears)/y, e.cfg.ExperienceClamps.Above, 1.0)
	}
	return 1.0
}

// locationFit is informational and does not enter the composite. Remote
// jobs, unlocated jobs and profiles without preferences fit fully.
func locationFit(job *models.Job, preferred []string) float64 {
	if len(preferred) == 0 {
		return 1.0
	}
	if job.WorkLocationType != nil && *job.WorkLocationType == models.WorkRemote {
		return 1.0
	}
	loc := job.Location
	if loc.City == "" && loc.Region == "" && loc.Country == "" {
		return 1.0
	}
	for _, p := range preferred {
		for _, part := range []string{loc.City, loc.Region, loc.Country} {
			if part != "" && textindex.Fold(strings.TrimSpace(part)) == textindex.Fold(strings.TrimSpace(p)) {
				return 1.0
			}
		}
	}
	return locationMiss
}

func rationale(domain Domain, reqHit, reqTotal, prefHit, prefTotal, domHit, domTotal int,
	contextKeyword string, job *models.Job, years int, locFit float64) []string {
	out := []string{
		fmt.Sprintf("domain: %s", domain),
		fmt.Sprintf("required skills matched %d/%d", reqHit, reqTotal),
		fmt.Sprintf("preferred skills matched %d/%d", prefHit, prefTotal),
		fmt.Sprintf("domain skills matched %d/%d", domHit, domTotal),
	}
	if contextKeyword != "" {
		out = append(out, fmt.Sprintf("job history mentions %q", contextKeyword))
	} else {
		out = append(out, "job history has no domain keywords")
	}
	switch {
	case job.ExperienceMinYears == nil && job.ExperienceMaxYears == nil:
		out = append(out, "job states no experience range")
	case job.ExperienceMinYears != nil && years < *job.ExperienceMinYears:
		out = append(out, fmt.Sprintf("%d years is below the %d year minimum", years, *job.ExperienceMinYears))
	case job.ExperienceMaxYears != nil && years > *job.ExperienceMaxYears:
		out = append(out, fmt.Sprintf("%d years is above the %d year maximum", years, *job.ExperienceMaxYears))
	default:
		out = append(out, fmt.Sprintf("%d years is within the experience range", years))
	}
	if locFit < 1.0 {
		out = append(out, "location outside preferred locations")
	}
	return out
}

// ApplyMultiplier applies a deprioritization factor to a scored result. The
// adjusted score is capped like the composite.
func ApplyMultiplier(r models.MatchResult, m float64) models.MatchResult {
	if m == 1.0 {
		r.Multiplier = 1.0
		return r
	}
	r.Multiplier = m
	r.CompositeScore = clamp(round4(math.Min(r.CompositeScore*m, ScoreCap)))
	r.Rationale = append(append([]string(nil), r.Rationale...), fmt.Sprintf("deprioritization x%.1f", m))
	return r
}

// Rank scores every job, applies per-job multipliers (missing means 1.0) and
// orders the results: higher composite, higher required_skill_match, newer
// posted_at, then job_id.
func (e *Engine) Rank(jobs []*models.Job, profile *models.Profile, multipliers map[uuid.UUID]float64) []models.MatchResult {
	type scored struct {
		job    *models.Job
		result models.MatchResult
	}
	all := make([]scored, 0, len(jobs))
	for _, j := range jobs {
		r := e.Score(j, profile)
		if m, ok := multipliers[j.ID]; ok {
			r = ApplyMultiplier(r, m)
		}
		all = append(all, scored{job: j, result: r})
	}

	sort.SliceStable(all, func(i, k int) bool {
		a, b := all[i], all[k]
		if a.result.CompositeScore != b.result.CompositeScore {
			return a.result.CompositeScore > b.result.CompositeScore
		}
		if a.result.Components.RequiredSkillMatch != b.result.Components.RequiredSkillMatch {
			return a.result.Components.RequiredSkillMatch > b.result.Components.RequiredSkillMatch
		}
		ap, bp := a.job.PostedAt, b.job.PostedAt
		switch {
		case ap != nil && bp != nil && !ap.Equal(*bp):
			return ap.After(*bp)
		case ap != nil && bp == nil:
			return true
		case ap == nil && bp != nil:
			return false
		}
		return a.job.ID.String() < b.job.ID.String()
	})

	out := make([]models.MatchResult, len(all))
	for i, s := range all {
		out[i] = s.result
	}
	return out
}

func skillSet(skills []string) map[string]bool {
	set := make(map[string]bool, len(skills))
	for _, s := range skills {
		if k := skillKey(s); k != "" {
			set[k] = true
		}
	}
	return set
}

func skillKey(s string) string {
	return textindex.Fold(models.SkillKey(s))
}

// overlap counts distinct entries of target present in have.
func overlap(have map[string]bool, target []string) (hit, total int) {
	seen := make(map[string]bool, len(target))
	for _, s := range target {
		k := skillKey(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		total++
		if have[k] {
			hit++
		}
	}
	return hit, total
}

func ratio(hit, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func clamp(v float64) float64 {
	return clampRange(v, 0, ScoreCap)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
