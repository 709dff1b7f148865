package matching

import (
	"github.com/kiranshivaraju/jobhunter/internal/textindex"
)

// Domain is one of the closed set of professional roles.
type Domain string

const (
	DomainBusinessAnalyst  Domain = "Business Analyst"
	DomainDataScientist    Domain = "Data Scientist"
	DomainSoftwareEngineer Domain = "Software Engineer"
	DomainProductManager   Domain = "Product Manager"
	DomainUnknown          Domain = "Unknown"
)

// DomainProfile is the pre-declared skill and keyword set of a domain.
type DomainProfile struct {
	Name               Domain
	CoreSkills         []string
	DomainSkills       []string
	ExperienceKeywords []string
}

// domainTable is consulted in order; the first keyword hit wins.
var domainTable = []DomainProfile{
	{
		Name:               DomainBusinessAnalyst,
		CoreSkills:         []string{"SQL", "Excel", "Requirements Gathering", "Data Analysis", "Business Process Modeling"},
		DomainSkills:       []string{"Tableau", "PowerBI", "Agile", "JIRA", "Process Mapping", "User Stories"},
		ExperienceKeywords: []string{"business analysis", "requirements", "process improvement", "stakeholder management"},
	},
	{
		Name:               DomainDataScientist,
		CoreSkills:         []string{"Python", "R", "Machine Learning", "SQL", "Statistics", "Data Analysis"},
		DomainSkills:       []string{"TensorFlow", "PyTorch", "Pandas", "Scikit-learn", "Deep Learning", "NLP"},
		ExperienceKeywords: []string{"data science", "machine learning", "predictive modeling", "ai", "ml"},
	},
	{
		Name:               DomainSoftwareEngineer,
		CoreSkills:         []string{"Python", "Java", "JavaScript", "SQL", "Git", "Agile"},
		DomainSkills:       []string{"AWS", "Docker", "Kubernetes", "React", "Node.js", "Microservices"},
		ExperienceKeywords: []string{"software development", "programming", "coding", "development"},
	},
	{
		Name:               DomainProductManager,
		CoreSkills:         []string{"Product Strategy", "Agile", "Analytics", "SQL", "Roadmapping", "Stakeholder Management"},
		DomainSkills:       []string{"JIRA", "Figma", "Google Analytics", "A/B Testing", "User Research", "OKRs"},
		ExperienceKeywords: []string{"product management", "product ownership", "roadmapping", "backlog management"},
	},
}

// fallbackHints map role tokens to a domain when no experience keyword hits.
var fallbackHints = []struct {
	phrases []string
	domain  Domain
}{
	{[]string{"analyst", "analysis"}, DomainBusinessAnalyst},
	{[]string{"scientist", "ml", "machine learning"}, DomainDataScientist},
	{[]string{"engineer", "developer"}, DomainSoftwareEngineer},
	{[]string{"manager", "product"}, DomainProductManager},
}

// Domains returns the built-in domain profiles in resolution order.
func Domains() []DomainProfile {
	out := make([]DomainProfile, len(domainTable))
	copy(out, domainTable)
	return out
}

// ProfileFor returns the profile of d. Unknown uses the Software Engineer
// profile.
func ProfileFor(d Domain) DomainProfile {
	for _, p := range domainTable {
		if p.Name == d {
			return p
		}
	}
	for _, p := range domainTable {
		if p.Name == DomainSoftwareEngineer {
			return p
		}
	}
	return DomainProfile{Name: DomainSoftwareEngineer}
}

// ResolveRole picks a domain for one role string: experience keywords first,
// then the token heuristics. ok is false when neither step matches.
func ResolveRole(role string) (Domain, bool) {
	if role == "" {
		return DomainUnknown, false
	}
	for _, p := range domainTable {
		for _, kw := range p.ExperienceKeywords {
			if textindex.ContainsPhrase(role, kw) {
				return p.Name, true
			}
		}
	}
	for _, h := range fallbackHints {
		for _, phrase := range h.phrases {
			if textindex.ContainsPhrase(role, phrase) {
				return h.domain, true
			}
		}
	}
	return DomainUnknown, false
}

// Resolve tries the target role, then the job title.
func Resolve(targetRole, jobTitle string) Domain {
	if d, ok := ResolveRole(targetRole); ok {
		return d
	}
	if d, ok := ResolveRole(jobTitle); ok {
		return d
	}
	return DomainUnknown
}
