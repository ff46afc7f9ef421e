// Package policy evaluates per-app and per-host automation rules that gate
// capturing and classification.
package policy

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Action is what a rule decides for a pipeline stage.
type Action string

const (
	ActionAllow Action = "allow"
	ActionSkip  Action = "skip"
)

// Rule matches the current app and/or host and decides whether to capture
// and whether to enqueue for classification. An empty matcher matches
// everything; an empty action means allow.
type Rule struct {
	App       string            `yaml:"app,omitempty"`
	Host      string            `yaml:"host,omitempty"`
	Capture   Action            `yaml:"capture,omitempty"`
	LLM       Action            `yaml:"llm,omitempty"`
	Overrides map[string]string `yaml:"overrides,omitempty"`
}

// RuleSet is the parsed rules file.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// Context is what a rule is evaluated against.
type Context struct {
	AppBundleID string
	Host        string
}

// Decision is the evaluation outcome. Defaults to allow on both stages when
// no rule matches.
type Decision struct {
	Capture   Action
	LLM       Action
	Overrides map[string]string
}

// LoadRules reads the YAML rules file. A missing file yields an empty rule
// set, not an error.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &RuleSet{}, nil
	}
	if err != nil {
		return nil, err
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Evaluate applies the first matching rule; no match means allow.
func Evaluate(rs *RuleSet, pctx Context) Decision {
	decision := Decision{Capture: ActionAllow, LLM: ActionAllow}
	if rs == nil {
		return decision
	}

	for _, rule := range rs.Rules {
		if !matches(rule.App, pctx.AppBundleID) || !matches(rule.Host, pctx.Host) {
			continue
		}
		if rule.Capture != "" {
			decision.Capture = rule.Capture
		}
		if rule.LLM != "" {
			decision.LLM = rule.LLM
		}
		decision.Overrides = rule.Overrides
		return decision
	}

	return decision
}

// matches checks a rule pattern against a value. Empty patterns match
// everything; a leading "*." suffix-matches hosts; a trailing "*"
// prefix-matches; otherwise the comparison is a case-insensitive equality.
func matches(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	pattern = strings.ToLower(pattern)
	value = strings.ToLower(value)

	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:]
		return strings.HasSuffix(value, suffix) || value == pattern[2:]
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, pattern[:len(pattern)-1])
	}
	return pattern == value
}
