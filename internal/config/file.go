package config

import (
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/spf13/viper"
)

// document mirrors the YAML configuration file. Sections left out of the
// file keep their defaults.
type document struct {
	Providers  []ProviderConfig `mapstructure:"providers"`
	Matching   *MatchingConfig  `mapstructure:"matching"`
	Store      *StoreConfig     `mapstructure:"store"`
	API        *APIConfig       `mapstructure:"api"`
	SecretsRef string           `mapstructure:"secrets_ref"`
}

func loadFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return apperr.Configf("JOBHUNTER_CONFIG", "read %s: %v", path, err)
	}

	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return apperr.Configf("JOBHUNTER_CONFIG", "decode %s: %v", path, err)
	}

	if len(doc.Providers) > 0 {
		cfg.Providers = withProviderDefaults(doc.Providers)
	}
	if doc.Matching != nil {
		cfg.Matching = mergeMatching(cfg.Matching, *doc.Matching)
	}
	if doc.Store != nil {
		mergeStore(&cfg.Store, *doc.Store)
	}
	if doc.API != nil {
		mergeAPI(&cfg.API, *doc.API)
	}
	if doc.SecretsRef != "" {
		cfg.SecretsRef = doc.SecretsRef
	}
	return nil
}

// withProviderDefaults fills budgets, cadence and credentials_ref left out
// of a provider entry from the adapter's declared defaults.
func withProviderDefaults(in []ProviderConfig) []ProviderConfig {
	out := make([]ProviderConfig, 0, len(in))
	for _, p := range in {
		if d, ok := providerDefaults[p.Name]; ok {
			if p.HourlyBudget == 0 {
				p.HourlyBudget = d.HourlyBudget
			}
			if p.DailyBudget == 0 {
				p.DailyBudget = d.DailyBudget
			}
			if p.Cadence == 0 {
				p.Cadence = d.Cadence
			}
		}
		if p.CredentialsRef == "" {
			p.CredentialsRef = p.Name
		}
		out = append(out, p)
	}
	return out
}

func mergeMatching(base, in MatchingConfig) MatchingConfig {
	if in.Weights != (Weights{}) {
		base.Weights = in.Weights
	}
	if len(in.SalaryTablePerDomain) > 0 {
		table := make(map[string]SalaryBand, len(base.SalaryTablePerDomain))
		for k, v := range base.SalaryTablePerDomain {
			table[k] = v
		}
		for k, v := range in.SalaryTablePerDomain {
			table[k] = v
		}
		base.SalaryTablePerDomain = table
	}
	if in.ExperienceClamps.Below != 0 {
		base.ExperienceClamps.Below = in.ExperienceClamps.Below
	}
	if in.ExperienceClamps.Above != 0 {
		base.ExperienceClamps.Above = in.ExperienceClamps.Above
	}
	if in.SalaryVariation != 0 {
		base.SalaryVariation = in.SalaryVariation
	}
	return base
}

func mergeStore(base *StoreConfig, in StoreConfig) {
	if in.DSN != "" {
		base.DSN = in.DSN
	}
	if in.PoolSize != 0 {
		base.PoolSize = in.PoolSize
	}
	if in.MinConns != 0 {
		base.MinConns = in.MinConns
	}
	if in.ConnMaxLifetime != 0 {
		base.ConnMaxLifetime = in.ConnMaxLifetime
	}
	if in.SearchLimitMax != 0 {
		base.SearchLimitMax = in.SearchLimitMax
	}
	if in.DeadlineGraceScrape != 0 {
		base.DeadlineGraceScrape = in.DeadlineGraceScrape
	}
}

func mergeAPI(base *APIConfig, in APIConfig) {
	if in.SearchDeadlineMS != 0 {
		base.SearchDeadlineMS = in.SearchDeadlineMS
	}
	if in.WriteDeadlineMS != 0 {
		base.WriteDeadlineMS = in.WriteDeadlineMS
	}
	if in.OverloadThreshold != 0 {
		base.OverloadThreshold = in.OverloadThreshold
	}
	if in.UserSearchQuota != 0 {
		base.UserSearchQuota = in.UserSearchQuota
	}
	if in.UserRequestsPerMin != 0 {
		base.UserRequestsPerMin = in.UserRequestsPerMin
	}
	if in.DefaultSearchLimit != 0 {
		base.DefaultSearchLimit = in.DefaultSearchLimit
	}
	if in.DefaultMatchResults != 0 {
		base.DefaultMatchResults = in.DefaultMatchResults
	}
}
