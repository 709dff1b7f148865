// Package careers reads JobPosting structured data from company career
// pages. It needs no credentials; the pages to crawl come from the query set.
package careers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/internal/textindex"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

type Provider struct {
	client *source.Client
	now    func() time.Time
}

func New(client *source.Client) *Provider {
	return &Provider{client: client, now: time.Now}
}

func (p *Provider) Name() string { return models.ProviderCompanyCareer }

func (p *Provider) FixtureMode() bool { return false }

func (p *Provider) Authenticate(_ context.Context) (source.AuthState, error) {
	return source.AuthState{Authenticated: true}, nil
}

// Search crawls every page in req.URLs and keeps postings whose title shares
// a token with the keywords. A page that fails to load is skipped unless
// every page fails.
func (p *Provider) Search(ctx context.Context, req source.SearchRequest) ([]source.RawPosting, error) {
	terms := textindex.Tokenize(req.Keywords)
	seen := make(map[string]bool)

	var (
		out     []source.RawPosting
		lastErr error
		loaded  int
	)
	for _, page := range req.URLs {
		doc, err := p.client.GetDocument(ctx, page, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			slog.Warn("failed to load career page", "provider", p.Name(), "url", page, "error", err)
			lastErr = err
			continue
		}
		loaded++
		fetched := p.now().UTC()
		for _, fields := range Extract(doc) {
			if len(terms) > 0 && !titleMatches(fields, terms) {
				continue
			}
			id := externalID(page, fields)
			if seen[id] {
				continue
			}
			seen[id] = true
			fields["_source_url"] = page
			out = append(out, source.RawPosting{Provider: p.Name(), ExternalID: id, Fields: fields, FetchedAt: fetched})
			if req.Limit > 0 && len(out) == req.Limit {
				return out, nil
			}
		}
	}
	if loaded == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func titleMatches(fields map[string]any, terms []string) bool {
	have := make(map[string]bool)
	for _, tok := range textindex.Tokenize(source.StringValue(fields["title"], fields["name"])) {
		have[tok] = true
	}
	for _, t := range terms {
		if have[t] {
			return true
		}
	}
	return false
}

// externalID prefers the posting URL, then its identifier; otherwise a hash
// of title, company and page keeps the id stable across crawls.
func externalID(page string, fields map[string]any) string {
	if u := source.StringValue(fields["url"]); u != "" {
		return absoluteURL(page, u)
	}
	if id := source.StringValue(source.MapValue(fields["identifier"], "value"), fields["identifier"]); id != "" {
		return id
	}
	key := strings.ToLower(source.StringValue(fields["title"]) + "|" +
		source.StringValue(source.MapValue(fields["hiringOrganization"], "name")) + "|" + page)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// FetchDetail reloads the posting page when the external id is its URL.
func (p *Provider) FetchDetail(ctx context.Context, externalID string) (*source.RawPosting, error) {
	u, err := url.Parse(externalID)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, nil
	}
	doc, err := p.client.GetDocument(ctx, externalID, nil)
	if err != nil {
		return nil, err
	}
	postings := Extract(doc)
	if len(postings) == 0 {
		return nil, nil
	}
	fields := postings[0]
	fields["_source_url"] = externalID
	return &source.RawPosting{Provider: p.Name(), ExternalID: externalID, Fields: fields, FetchedAt: p.now().UTC()}, nil
}

// Extract returns every JobPosting object found in the document's JSON-LD
// blocks, including ones nested in @graph, mainEntity or ItemList.
func Extract(doc *goquery.Document) []map[string]any {
	var out []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		data, err := decodeJSONLD(s.Text())
		if err != nil {
			return
		}
		out = append(out, collect(data)...)
	})
	return out
}

func decodeJSONLD(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "<!--"), "-->")
	raw = strings.NewReplacer("\u2028", "", "\u2029", "").Replace(strings.TrimSpace(raw))

	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func collect(data any) []map[string]any {
	var out []map[string]any
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			out = append(out, collect(item)...)
		}
	case map[string]any:
		if isType(v, "jobposting") {
			return append(out, v)
		}
		if isType(v, "itemlist") {
			out = append(out, collect(v["itemListElement"])...)
		}
		if isType(v, "listitem") {
			out = append(out, collect(v["item"])...)
		}
		if graph, ok := v["@graph"]; ok {
			out = append(out, collect(graph)...)
		}
		if main, ok := v["mainEntity"]; ok {
			out = append(out, collect(main)...)
		}
	}
	return out
}

func isType(v map[string]any, want string) bool {
	switch t := v["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func absoluteURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func (p *Provider) Normalize(raw source.RawPosting) (*models.Job, error) {
	f := raw.Fields
	page := source.StringValue(f["_source_url"])

	job := source.NewJob(raw)
	job.Title = source.StringValue(f["title"], f["name"])
	org := f["hiringOrganization"]
	job.CompanyName = source.StringValue(source.MapValue(org, "name"), org)
	job.CompanyIndustry = source.StringPtr(source.StringValue(f["industry"], source.MapValue(org, "industry")))
	job.Location = location(f["jobLocation"])
	if strings.EqualFold(source.StringValue(f["jobLocationType"]), "TELECOMMUTE") {
		job.WorkLocationType = source.WorkLocationType("remote")
	}
	if types := source.StringList(f["employmentType"]); len(types) > 0 {
		job.EmploymentType = source.EmploymentType(types[0])
	}
	job.PostedAt = source.ParseTime(f["datePosted"])
	job.ApplicationDeadline = source.ParseTime(f["validThrough"])
	job.Description = source.CleanText(source.StringValue(f["description"]))
	job.RequiredSkills = source.StringList(f["skills"])
	job.Requirements = source.StringList(f["qualifications"])
	if months := source.FloatValue(source.MapValue(f["experienceRequirements"], "monthsOfExperience")); months != nil {
		years := int(*months / 12)
		job.ExperienceMinYears = &years
	}
	job.Salary = salary(f["baseSalary"])
	if u := source.StringValue(f["url"]); u != "" {
		job.ApplyURLs[raw.Provider] = absoluteURL(page, u)
	} else if page != "" {
		job.ApplyURLs[raw.Provider] = page
	}
	job, err := source.Finish(raw, job)
	if err != nil {
		return nil, fmt.Errorf("career page %s: %w", page, err)
	}
	return job, nil
}

func location(v any) models.Location {
	switch t := v.(type) {
	case []any:
		if len(t) > 0 {
			return location(t[0])
		}
	case map[string]any:
		addr, ok := t["address"].(map[string]any)
		if !ok {
			addr = t
		}
		return models.Location{
			City:    source.StringValue(addr["addressLocality"]),
			Region:  source.StringValue(addr["addressRegion"]),
			Country: source.StringValue(addr["addressCountry"]),
		}
	case string:
		return source.SplitLocation(t)
	}
	return models.Location{}
}

func salary(v any) models.Salary {
	m, ok := v.(map[string]any)
	if !ok {
		return models.Salary{}
	}
	s := models.Salary{Currency: source.StringPtr(source.StringValue(m["currency"]))}
	val := m["value"]
	if exact := source.FloatValue(source.MapValue(val, "value")); exact != nil {
		s.Min, s.Max = exact, exact
	} else {
		s.Min = source.FloatValue(source.MapValue(val, "minValue"))
		s.Max = source.FloatValue(source.MapValue(val, "maxValue"))
	}
	if f := source.FloatValue(val); f != nil {
		s.Min, s.Max = f, f
	}
	s.Period = source.SalaryPeriod(source.StringValue(source.MapValue(val, "unitText"), m["unitText"]))
	if s.Min == nil && s.Max == nil {
		return models.Salary{}
	}
	return s
}
