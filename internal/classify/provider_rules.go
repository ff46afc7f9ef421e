// Package classify routes capture classification through pluggable
// providers in priority order with graceful fallback.
package classify

import (
	"context"
	"strings"

	"github.com/retracehq/retrace/pkg/models"
)

// categoryRule maps a context-key prefix or bundle-id fragment to a
// category.
type categoryRule struct {
	keyPrefix      string
	bundleFragment string
	category       string
	activity       string
}

var defaultRules = []categoryRule{
	{keyPrefix: "youtube:", category: "entertainment", activity: "watching video"},
	{keyPrefix: "netflix:", category: "entertainment", activity: "watching video"},
	{keyPrefix: "twitch:", category: "entertainment", activity: "watching stream"},
	{keyPrefix: "spotify:", category: "entertainment", activity: "listening"},
	{keyPrefix: "web:", category: "browsing", activity: "browsing the web"},
	{bundleFragment: "xcode", category: "development", activity: "coding"},
	{bundleFragment: "vscode", category: "development", activity: "coding"},
	{bundleFragment: "jetbrains", category: "development", activity: "coding"},
	{bundleFragment: "terminal", category: "development", activity: "terminal work"},
	{bundleFragment: "iterm", category: "development", activity: "terminal work"},
	{bundleFragment: "slack", category: "communication", activity: "messaging"},
	{bundleFragment: "teams", category: "communication", activity: "messaging"},
	{bundleFragment: "mail", category: "communication", activity: "email"},
	{bundleFragment: "zoom", category: "communication", activity: "meeting"},
	{bundleFragment: "figma", category: "design", activity: "designing"},
	{bundleFragment: "photoshop", category: "design", activity: "designing"},
}

// RulesProvider is the terminal fallback of the classification chain: a
// static category table keyed on the context key and bundle id. It is always
// available and never calls out.
type RulesProvider struct {
	rules []categoryRule
}

// NewRulesProvider creates a rules provider with the default category table.
func NewRulesProvider() *RulesProvider {
	return &RulesProvider{rules: defaultRules}
}

// ID implements Provider.
func (p *RulesProvider) ID() string { return "rules" }

// IsAvailable implements Provider; the rules table is always available.
func (p *RulesProvider) IsAvailable(context.Context, RouterContext) (bool, error) {
	return true, nil
}

// Classify matches the context key prefix first, then the bundle id.
func (p *RulesProvider) Classify(_ context.Context, input Input, _ RouterContext) (*models.ClassificationResult, error) {
	key := ""
	bundleID := ""
	if input.Context != nil {
		key = input.Context.Key
		bundleID = strings.ToLower(input.Context.App.BundleID)
	}

	for _, rule := range p.rules {
		if rule.keyPrefix != "" && strings.HasPrefix(key, rule.keyPrefix) {
			return &models.ClassificationResult{
				Category:   rule.category,
				Activity:   rule.activity,
				Confidence: 0.5,
			}, nil
		}
		if rule.bundleFragment != "" && strings.Contains(bundleID, rule.bundleFragment) {
			return &models.ClassificationResult{
				Category:   rule.category,
				Activity:   rule.activity,
				Confidence: 0.5,
			}, nil
		}
	}

	return &models.ClassificationResult{Category: "uncategorized", Confidence: 0.2}, nil
}
