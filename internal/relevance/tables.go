package relevance

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// CategoryKeywords holds the two-tier keyword policy for one category: strong
// keywords are domain-specific terms, weak keywords are generic terms shared
// across categories.
type CategoryKeywords struct {
	Strong []string `yaml:"strong"`
	Weak   []string `yaml:"weak"`
}

// CountryTerms is the curated term list for one country. When Terms is empty
// the lowercased display name is the only term.
type CountryTerms struct {
	Name  string   `yaml:"name"`
	Terms []string `yaml:"terms"`
}

// Tables bundles every curated lookup the filters and the ranking engine
// consult: keyword lists, source tiers, wire-service domains and the
// per-country orchestration policy sets.
type Tables struct {
	Categories  map[string]CategoryKeywords `yaml:"categories"`
	Countries   map[string]CountryTerms     `yaml:"countries"`
	Tiers       map[string]int              `yaml:"tiers"`
	WireDomains []string                    `yaml:"wire_domains"`
	WellCovered []string                    `yaml:"well_covered"`
	SkipTrusted []string                    `yaml:"skip_trusted"`

	wireSet        map[string]struct{}
	wellCoveredSet map[string]struct{}
	skipTrustedSet map[string]struct{}
}

// Default returns the embedded curated tables.
func Default() (*Tables, error) {
	return parseTables(defaultTablesYAML)
}

// Load reads tables from a YAML file, falling back to the embedded defaults
// when path is empty.
func Load(path string) (*Tables, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword tables %s: %w", path, err)
	}
	return parseTables(raw)
}

func parseTables(raw []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode keyword tables: %w", err)
	}
	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("keyword tables define no categories")
	}

	t.wireSet = toSet(t.WireDomains)
	t.wellCoveredSet = toSet(t.WellCovered)
	t.skipTrustedSet = toSet(t.SkipTrusted)
	return &t, nil
}

// TierFor returns the 1-3 authority rank for a source domain; unknown domains
// are tier 1.
func (t *Tables) TierFor(domain string) int {
	if tier, ok := t.Tiers[strings.ToLower(strings.TrimSpace(domain))]; ok && tier >= 1 && tier <= 3 {
		return tier
	}
	return 1
}

// IsWireService reports whether the domain is a flagged international
// wire-service outlet. Wire services never receive a home-country bonus.
func (t *Tables) IsWireService(domain string) bool {
	_, ok := t.wireSet[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}

// IsWellCovered reports whether the country's primary adapters reliably
// supply enough articles that quota-limited secondaries can be held back on
// the first pass.
func (t *Tables) IsWellCovered(country string) bool {
	_, ok := t.wellCoveredSet[strings.ToLower(strings.TrimSpace(country))]
	return ok
}

// SkipTrustedRestriction reports whether the trusted-domain restriction should
// be skipped for a country whose adapters return too little domestic coverage
// under it.
func (t *Tables) SkipTrustedRestriction(country string) bool {
	_, ok := t.skipTrustedSet[strings.ToLower(strings.TrimSpace(country))]
	return ok
}

// countryTerms resolves the term set for a country code.
func (t *Tables) countryTerms(country string) []string {
	entry, ok := t.Countries[strings.ToLower(strings.TrimSpace(country))]
	if !ok {
		return nil
	}
	if len(entry.Terms) > 0 {
		return entry.Terms
	}
	if entry.Name != "" {
		return []string{strings.ToLower(entry.Name)}
	}
	return nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
