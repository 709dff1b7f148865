// Package providers builds the configured source adapters.
package providers

import (
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/jobhunter/internal/config"
	"github.com/kiranshivaraju/jobhunter/internal/secrets"
	"github.com/kiranshivaraju/jobhunter/internal/source"
	"github.com/kiranshivaraju/jobhunter/internal/source/careers"
	"github.com/kiranshivaraju/jobhunter/internal/source/fixture"
	"github.com/kiranshivaraju/jobhunter/internal/source/glassdoor"
	"github.com/kiranshivaraju/jobhunter/internal/source/indeed"
	"github.com/kiranshivaraju/jobhunter/internal/source/linkedin"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

// NewProvider constructs the concrete provider for pc. A provider whose
// credentials are not configured falls back to the labeled fixture set.
func NewProvider(pc config.ProviderConfig, r secrets.Resolver, client *source.Client) (source.Provider, error) {
	ref := pc.CredentialsRef
	if ref == "" {
		ref = pc.Name
	}

	switch pc.Name {
	case models.ProviderLinkedIn:
		creds, ok, err := secrets.Credentials(r, ref, linkedin.KeyClientID, linkedin.KeyClientSecret)
		if err != nil {
			return nil, fmt.Errorf("resolving %s credentials: %w", pc.Name, err)
		}
		if !ok {
			return fixture.New(pc.Name), nil
		}
		return linkedin.New(linkedin.Config{
			BaseURL:       pc.BaseURL,
			AuthURL:       pc.AuthURL,
			ClientID:      creds[linkedin.KeyClientID],
			ClientSecret:  creds[linkedin.KeyClientSecret],
			RefreshBuffer: pc.AuthRefreshBuffer,
		}, client), nil

	case models.ProviderIndeed:
		creds, ok, err := secrets.Credentials(r, ref, indeed.KeyAPIKey)
		if err != nil {
			return nil, fmt.Errorf("resolving %s credentials: %w", pc.Name, err)
		}
		if !ok {
			return fixture.New(pc.Name), nil
		}
		return indeed.New(indeed.Config{BaseURL: pc.BaseURL, APIKey: creds[indeed.KeyAPIKey]}, client), nil

	case models.ProviderGlassdoor:
		creds, ok, err := secrets.Credentials(r, ref, glassdoor.KeyPartnerID, glassdoor.KeyAPIKey)
		if err != nil {
			return nil, fmt.Errorf("resolving %s credentials: %w", pc.Name, err)
		}
		if !ok {
			return fixture.New(pc.Name), nil
		}
		return glassdoor.New(glassdoor.Config{
			BaseURL:   pc.BaseURL,
			PartnerID: creds[glassdoor.KeyPartnerID],
			APIKey:    creds[glassdoor.KeyAPIKey],
		}, client), nil

	case models.ProviderCompanyCareer:
		if !hasURLs(pc.QuerySet) {
			return fixture.New(pc.Name), nil
		}
		return careers.New(client), nil

	case models.ProviderStaticFixture:
		return fixture.New(pc.Name), nil

	default:
		return nil, fmt.Errorf("unknown provider %q: must be one of linkedin, indeed, glassdoor, company_career, static_fixture", pc.Name)
	}
}

func hasURLs(queries []config.Query) bool {
	for _, q := range queries {
		if len(q.URLs) > 0 {
			return true
		}
	}
	return false
}

// Registry holds one adapter per enabled provider, in configured order.
type Registry struct {
	adapters map[string]*source.Adapter
	order    []string
}

// Build wires every enabled provider in cfg to the shared limiter and result
// cache. Called once at startup.
func Build(cfg *config.Config, r secrets.Resolver, limiter source.Limiter, cache source.ResultCache, opts ...source.ClientOption) (*Registry, error) {
	reg := &Registry{adapters: make(map[string]*source.Adapter)}
	for _, pc := range cfg.EnabledProviders() {
		client := source.NewClient(pc.Name, limiter, pc.Timeout, opts...)
		p, err := NewProvider(pc, r, client)
		if err != nil {
			return nil, err
		}
		reg.Add(source.NewAdapter(p, cache, cfg.Ingest.CacheTTL))
		slog.Info("provider ready", "provider", pc.Name, "fixture_mode", p.FixtureMode())
	}
	return reg, nil
}

// NewRegistry wraps already-built adapters; tests and the CLI use it.
func NewRegistry(adapters ...*source.Adapter) *Registry {
	reg := &Registry{adapters: make(map[string]*source.Adapter)}
	for _, a := range adapters {
		reg.Add(a)
	}
	return reg
}

func (r *Registry) Add(a *source.Adapter) {
	if _, ok := r.adapters[a.Name()]; !ok {
		r.order = append(r.order, a.Name())
	}
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (*source.Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func (r *Registry) All() []*source.Adapter {
	out := make([]*source.Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Statuses snapshots every adapter for the providers listing.
func (r *Registry) Statuses() []source.Status {
	out := make([]source.Status, 0, len(r.order))
	for _, a := range r.All() {
		out = append(out, a.Status())
	}
	return out
}

// Requests expands a provider's query set into search requests.
func Requests(pc config.ProviderConfig, defaultLimit int) []source.SearchRequest {
	out := make([]source.SearchRequest, 0, len(pc.QuerySet))
	for _, q := range pc.QuerySet {
		limit := q.Limit
		if limit <= 0 {
			limit = defaultLimit
		}
		out = append(out, source.SearchRequest{
			Keywords: q.Keywords,
			Location: q.Location,
			Limit:    limit,
			URLs:     q.URLs,
		})
	}
	return out
}
