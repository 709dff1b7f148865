package matching

import (
	"math"

	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// Confidence levels attached to salary estimates.
const (
	ConfidenceListed = "listed"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

const experienceStep = 0.03

// salaryFor returns the listed salary when the job carries one, otherwise a
// table estimate. The job itself is never modified.
func (e *Engine) salaryFor(job *models.Job, domain Domain, years int) *models.SalaryEstimate {
	if job.Salary.Min != nil || job.Salary.Max != nil {
		est := &models.SalaryEstimate{
			Currency:   "USD",
			Period:     models.PeriodYear,
			Estimated:  false,
			Confidence: ConfidenceListed,
		}
		if job.Salary.Min != nil {
			est.Min = *job.Salary.Min
		}
		if job.Salary.Max != nil {
			est.Max = *job.Salary.Max
		}
		if est.Min == 0 {
			est.Min = est.Max
		}
		if est.Max == 0 {
			est.Max = est.Min
		}
		if job.Salary.Currency != nil {
			est.Currency = *job.Salary.Currency
		}
		if job.Salary.Period != nil {
			est.Period = *job.Salary.Period
		}
		return est
	}
	return e.EstimateSalary(domain, years, 0)
}

// EstimateSalary derives a yearly range from the domain table, scaled by
// 1 + 0.03·years and by 1 + salary_variation·variation for the variation-th
// alternative posting. Unknown domains use the Software Engineer band and
// are reported with low confidence. nil means the table has no usable band.
func (e *Engine) EstimateSalary(domain Domain, years, variation int) *models.SalaryEstimate {
	confidence := ConfidenceMedium
	lookup := domain
	if domain == DomainUnknown {
		lookup = DomainSoftwareEngineer
		confidence = ConfidenceLow
	}
	band, ok := e.cfg.SalaryTablePerDomain[string(lookup)]
	if !ok || band.Min <= 0 {
		return nil
	}
	if years < 0 {
		years = 0
	}
	if variation < 0 {
		variation = 0
	}

	scale := (1 + experienceStep*float64(years)) * (1 + e.cfg.SalaryVariation*float64(variation))
	currency := band.Currency
	if currency == "" {
		currency = "USD"
	}
	return &models.SalaryEstimate{
		Min:        math.Round(band.Min * scale),
		Max:        math.Round(band.Max * scale),
		Currency:   currency,
		Period:     models.PeriodYear,
		Estimated:  true,
		Confidence: confidence,
	}
}
