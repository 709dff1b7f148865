package source

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
	"github.com/mitchellh/mapstructure"
)

// CleanText strips markup from s and collapses whitespace.
func CleanText(s string) string {
	if strings.ContainsAny(s, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("br, p, li, div").Each(func(_ int, sel *goquery.Selection) {
				sel.AppendHtml(" ")
			})
			s = doc.Text()
		}
	}
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTime accepts the date layouts providers use plus epoch values, which
// are read as milliseconds when they are too large to be seconds.
func ParseTime(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case float64:
		return epoch(int64(t))
	case int64:
		return epoch(t)
	case int:
		return epoch(int64(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return epoch(n)
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epoch(n)
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				u := ts.UTC()
				return &u
			}
		}
	}
	return nil
}

func epoch(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n > 1e11 {
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}

// SplitLocation reads "City", "City, Country" or "City, Region, Country".
func SplitLocation(s string) models.Location {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return models.Location{}
	case 1:
		return models.Location{City: parts[0]}
	case 2:
		return models.Location{City: parts[0], Country: parts[1]}
	default:
		return models.Location{City: parts[0], Region: parts[1], Country: parts[len(parts)-1]}
	}
}

// StringValue returns the first non-empty value rendered as a string.
func StringValue(values ...any) string {
	for _, value := range values {
		switch v := value.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		case json.Number:
			return v.String()
		case map[string]any:
			if name := StringValue(v["name"]); name != "" {
				return name
			}
		}
	}
	return ""
}

// MapValue indexes value as a JSON object.
func MapValue(value any, key string) any {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

// FloatValue reads a number or numeric string. Nil when absent.
func FloatValue(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return nil
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), 64)
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// IntValue is FloatValue truncated. Negative values are dropped.
func IntValue(v any) *int {
	f := FloatValue(v)
	if f == nil || *f < 0 {
		return nil
	}
	i := int(*f)
	return &i
}

// StringList reads a list of strings, or a single comma-separated string.
func StringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, item := range t {
			if s := StringValue(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func StringPtr(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func enumKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

var experienceLevels = map[string]models.ExperienceLevel{
	"entry":        models.ExperienceEntry,
	"entry_level":  models.ExperienceEntry,
	"junior":       models.ExperienceEntry,
	"internship":   models.ExperienceEntry,
	"graduate":     models.ExperienceEntry,
	"mid":          models.ExperienceMid,
	"mid_level":    models.ExperienceMid,
	"associate":    models.ExperienceMid,
	"intermediate": models.ExperienceMid,
	"senior":       models.ExperienceSenior,
	"mid_senior":   models.ExperienceSenior,
	"senior_level": models.ExperienceSenior,
	"lead":         models.ExperienceSenior,
	"executive":    models.ExperienceExecutive,
	"director":     models.ExperienceExecutive,
}

// ExperienceLevel maps provider vocabularies onto the closed set; anything
// unrecognized is nil.
func ExperienceLevel(s string) *models.ExperienceLevel {
	if v, ok := experienceLevels[enumKey(s)]; ok {
		return &v
	}
	return nil
}

var employmentTypes = map[string]models.EmploymentType{
	"full_time":  models.EmploymentFullTime,
	"fulltime":   models.EmploymentFullTime,
	"permanent":  models.EmploymentFullTime,
	"part_time":  models.EmploymentPartTime,
	"parttime":   models.EmploymentPartTime,
	"contract":   models.EmploymentContract,
	"contractor": models.EmploymentContract,
	"freelance":  models.EmploymentContract,
	"temporary":  models.EmploymentTemporary,
	"temp":       models.EmploymentTemporary,
	"internship": models.EmploymentInternship,
	"intern":     models.EmploymentInternship,
}

func EmploymentType(s string) *models.EmploymentType {
	if v, ok := employmentTypes[enumKey(s)]; ok {
		return &v
	}
	return nil
}

var workLocationTypes = map[string]models.WorkLocationType{
	"on_site":     models.WorkOnSite,
	"onsite":      models.WorkOnSite,
	"office":      models.WorkOnSite,
	"in_office":   models.WorkOnSite,
	"remote":      models.WorkRemote,
	"telecommute": models.WorkRemote,
	"hybrid":      models.WorkHybrid,
}

func WorkLocationType(s string) *models.WorkLocationType {
	if v, ok := workLocationTypes[enumKey(s)]; ok {
		return &v
	}
	return nil
}

var salaryPeriods = map[string]models.SalaryPeriod{
	"hour":     models.PeriodHour,
	"hourly":   models.PeriodHour,
	"per_hour": models.PeriodHour,
	"month":    models.PeriodMonth,
	"monthly":  models.PeriodMonth,
	"year":     models.PeriodYear,
	"yearly":   models.PeriodYear,
	"annual":   models.PeriodYear,
	"annually": models.PeriodYear,
	"per_year": models.PeriodYear,
}

func SalaryPeriod(s string) *models.SalaryPeriod {
	if v, ok := salaryPeriods[enumKey(s)]; ok {
		return &v
	}
	return nil
}

var closedStates = map[string]bool{
	"closed":    true,
	"expired":   true,
	"filled":    true,
	"suspended": true,
	"deleted":   true,
	"inactive":  true,
}

// ClosedState reports whether a provider's posting state means the posting
// no longer takes applications. Unknown states read as open.
func ClosedState(s string) bool {
	return closedStates[enumKey(s)]
}

// NewJob starts a canonical record for raw with provenance filled in.
func NewJob(raw RawPosting) *models.Job {
	scraped := raw.FetchedAt
	if scraped.IsZero() {
		scraped = time.Now()
	}
	return &models.Job{
		ExternalIDs: map[string]string{raw.Provider: raw.ExternalID},
		ApplyURLs:   map[string]string{},
		DataSource:  raw.Provider,
		ScrapedAt:   scraped.UTC(),
		IsActive:    true,
	}
}

// Finish validates a normalized job, naming the posting on failure.
func Finish(raw RawPosting, job *models.Job) (*models.Job, error) {
	job.RequiredSkills = models.NormalizeSkills(job.RequiredSkills)
	job.PreferredSkills = models.NormalizeSkills(job.PreferredSkills)
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("normalizing %s posting %s: %w", raw.Provider, raw.ExternalID, err)
	}
	return job, nil
}

// DecodeFields decodes a provider payload into a typed struct tagged with
// mapstructure. Numbers and strings convert loosely; unknown keys are kept
// out of the result.
func DecodeFields(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
