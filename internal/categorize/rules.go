package categorize

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embeddedRules []byte

// MatchType defines how rule patterns are matched against descriptions.
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description.
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring.
	MatchTypeContains MatchType = "contains"
)

// Rule maps a description pattern to a category name. Rules run as a
// pre-pass before fuzzy matching; a rule hit is authoritative.
type Rule struct {
	Name      string    `yaml:"name"`
	Pattern   string    `yaml:"pattern"`
	MatchType MatchType `yaml:"match_type"`
	Priority  int       `yaml:"priority"`
	Category  string    `yaml:"category"`
	Transfer  bool      `yaml:"transfer"`
}

// RuleSet is the top-level YAML structure.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// RuleMatch is the result of applying a rule.
type RuleMatch struct {
	Category string
	Transfer bool
	RuleName string
}

// Engine matches descriptions against a prioritized rule list.
type Engine struct {
	rules []Rule // sorted by priority, highest first
}

// NewEngine creates a rules engine from YAML data.
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if rule.Priority < 0 || rule.Priority > 999 {
			return nil, fmt.Errorf("rule %d (%s): priority must be in [0,999], got %d", i, rule.Name, rule.Priority)
		}
		if rule.MatchType != MatchTypeExact && rule.MatchType != MatchTypeContains {
			return nil, fmt.Errorf("rule %d (%s): invalid match_type %q (must be 'exact' or 'contains')", i, rule.Name, rule.MatchType)
		}
		if strings.TrimSpace(rule.Pattern) == "" {
			return nil, fmt.Errorf("rule %d (%s): pattern cannot be empty", i, rule.Name)
		}
		if strings.TrimSpace(rule.Category) == "" {
			return nil, fmt.Errorf("rule %d (%s): category cannot be empty", i, rule.Name)
		}
	}

	// Stable sort keeps YAML file order for equal priorities, so matching
	// stays deterministic.
	sorted := make([]Rule, len(ruleSet.Rules))
	copy(sorted, ruleSet.Rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	return &Engine{rules: sorted}, nil
}

// LoadEmbedded loads the built-in rules.yaml.
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	return engine, nil
}

// LoadFromFile loads rules from a filesystem path.
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// Match applies rules in priority order and returns the first hit.
// Matching is on normalized text. Returns (nil, false) if no rule matches.
func (e *Engine) Match(description string) (*RuleMatch, bool) {
	desc := Normalize(description)

	for _, rule := range e.rules {
		pattern := Normalize(rule.Pattern)

		matched := false
		switch rule.MatchType {
		case MatchTypeExact:
			matched = desc == pattern
		case MatchTypeContains:
			matched = strings.Contains(desc, pattern)
		}

		if matched {
			return &RuleMatch{
				Category: rule.Category,
				Transfer: rule.Transfer,
				RuleName: rule.Name,
			}, true
		}
	}
	return nil, false
}
