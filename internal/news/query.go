package news

import (
	"fmt"
	"strings"
)

// Range tokens accepted on a request. "all" means no date window.
const (
	RangeDay   = "24h"
	Range3Days = "3d"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeAll   = "all"
)

// Language modes.
const (
	LangEnglishOnly = "en-only"
	LangAll         = "all"
)

var rangeHoursByToken = map[string]int{
	RangeDay:   24,
	Range3Days: 72,
	RangeWeek:  168,
	RangeMonth: 720,
	RangeAll:   0,
}

// RangeHours maps a range token to its window in hours; 0 means unbounded.
func RangeHours(token string) (int, error) {
	hours, ok := rangeHoursByToken[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return 0, fmt.Errorf("unknown range token %q", token)
	}
	return hours, nil
}

// Query is the conceptual request shape: one or more countries and categories,
// optional free-text search, an optional date window, an optional source
// restriction and a language mode.
type Query struct {
	Countries   []string
	Categories  []string
	SearchTerms []string
	RangeToken  string
	Sources     []string
	LangMode    string
	Popularity  bool
}

// Normalize lowercases and trims all request fields and applies defaults.
// Country and category tokens become positional fields of downstream cache
// keys, so hyphenated values are rejected.
func (q *Query) Normalize() error {
	q.Countries = normalizeTokens(q.Countries)
	q.Categories = normalizeTokens(q.Categories)
	q.Sources = normalizeTokens(q.Sources)

	for _, c := range q.Countries {
		if strings.Contains(c, "-") {
			return fmt.Errorf("invalid country %q", c)
		}
	}
	for _, c := range q.Categories {
		if strings.Contains(c, "-") {
			return fmt.Errorf("invalid category %q", c)
		}
	}

	terms := make([]string, 0, len(q.SearchTerms))
	for _, t := range q.SearchTerms {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	q.SearchTerms = terms

	if q.RangeToken == "" {
		q.RangeToken = RangeDay
	}
	q.RangeToken = strings.ToLower(strings.TrimSpace(q.RangeToken))
	if _, err := RangeHours(q.RangeToken); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(q.LangMode)) {
	case "", LangAll:
		q.LangMode = LangAll
	case LangEnglishOnly, "en":
		q.LangMode = LangEnglishOnly
	default:
		return fmt.Errorf("unknown language mode %q", q.LangMode)
	}

	if len(q.Countries) == 0 {
		q.Countries = []string{"us"}
	}
	if len(q.Categories) == 0 {
		q.Categories = []string{"general"}
	}
	return nil
}

// IsKeywordSearch reports whether free-text terms were supplied.
func (q Query) IsKeywordSearch() bool {
	return len(q.SearchTerms) > 0
}

func normalizeTokens(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
