package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InjectionPatternFamily is one named family of regex patterns the scanner
// tries to match, loaded from tools.yaml.
type InjectionPatternFamily struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// ToolConfig is one entry of tools.yaml, supplementing a registered Tool's
// capability flags with operator-tunable knobs (quota, proposal caps) that
// don't belong hardcoded in Go.
type ToolConfig struct {
	Name                string `yaml:"name"`
	MaxProposalPapers   int    `yaml:"max_proposal_papers"`
	DailyIngestQuota    int    `yaml:"daily_ingest_quota"`
}

// ToolsFile is the root shape of tools.yaml.
type ToolsFile struct {
	InjectionPatterns []InjectionPatternFamily `yaml:"injection_patterns"`
	Tools             []ToolConfig             `yaml:"tools"`
}

// LoadToolsFile reads and parses tools.yaml. A missing file is not an
// error; callers fall back to DefaultInjectionPatterns.
func LoadToolsFile(path string) (*ToolsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ToolsFile{InjectionPatterns: DefaultInjectionPatterns()}, nil
		}
		return nil, fmt.Errorf("read tools file: %w", err)
	}

	var f ToolsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tools file: %w", err)
	}
	if len(f.InjectionPatterns) == 0 {
		f.InjectionPatterns = DefaultInjectionPatterns()
	}
	return &f, nil
}

// DefaultInjectionPatterns is the built-in pattern set, used when
// tools.yaml doesn't override it.
func DefaultInjectionPatterns() []InjectionPatternFamily {
	return []InjectionPatternFamily{
		{
			Name: "directive_override",
			Patterns: []string{
				`(?i)ignore (all )?previous instructions`,
				`(?i)disregard (everything|all) above`,
				`(?i)new instructions\s*:`,
			},
		},
		{
			Name: "role_override",
			Patterns: []string{
				`(?i)you are now`,
				`(?i)act as (a|an)?\s*\w+`,
				`(?i)pretend you('re| are)`,
			},
		},
		{
			Name: "system_prompt_exfiltration",
			Patterns: []string{
				`(?i)what is the system prompt`,
				`<\|\s*system\s*\|>`,
			},
		},
		{
			Name: "scoring_injection",
			Patterns: []string{
				`(?i)set is_in_scope\s*=\s*true`,
				`(?i)score this as 100`,
			},
		},
		{
			Name: "marker_injection",
			Patterns: []string{
				`\[INST\]`,
				`<\|[^|]*\|>`,
			},
		},
	}
}
