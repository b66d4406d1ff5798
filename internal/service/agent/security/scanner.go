// Package security implements the injection scanner: a pure function from
// user text to a suspicion verdict, with pattern families configurable
// through tools.yaml.
package security

import (
	"regexp"

	"arxivian/internal/config"
	agentmodels "arxivian/internal/domain/models/agent"
	agentsvc "arxivian/internal/domain/services/agent"
)

type compiledFamily struct {
	name     string
	patterns []*regexp.Regexp
}

// RegexScanner implements agentsvc.InjectionScanner over a set of named
// regex pattern families, compiled once at construction time.
type RegexScanner struct {
	families []compiledFamily
}

// NewRegexScanner compiles the given pattern families. A pattern that
// fails to compile is skipped rather than failing construction, and a
// family is dropped only when none of its patterns compile — a malformed
// tools.yaml entry shouldn't take the whole scanner down.
func NewRegexScanner(families []config.InjectionPatternFamily) *RegexScanner {
	s := &RegexScanner{}
	for _, f := range families {
		cf := compiledFamily{name: f.Name}
		for _, p := range f.Patterns {
			if re, err := regexp.Compile(p); err == nil {
				cf.patterns = append(cf.patterns, re)
			}
		}
		if len(cf.patterns) > 0 {
			s.families = append(s.families, cf)
		}
	}
	return s
}

// NewDefaultRegexScanner builds a scanner from the built-in pattern set.
func NewDefaultRegexScanner() *RegexScanner {
	return NewRegexScanner(config.DefaultInjectionPatterns())
}

var _ agentsvc.InjectionScanner = (*RegexScanner)(nil)

// Scan is a pure function: empty input is never suspicious, and the
// returned result never aliases scanner-internal state.
func (s *RegexScanner) Scan(text string) agentmodels.InjectionScanResult {
	if text == "" {
		return agentmodels.InjectionScanResult{}
	}

	var matched []string
	for _, f := range s.families {
		for _, re := range f.patterns {
			if re.MatchString(text) {
				matched = append(matched, f.name)
				break
			}
		}
	}

	return agentmodels.InjectionScanResult{
		IsSuspicious:    len(matched) > 0,
		MatchedPatterns: matched,
	}
}
