package repository

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

// LoadRules reads the static validation rule table from a YAML file.
func LoadRules(path string) (*models.RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rule table and checks it for obvious mistakes.
func ParseRules(data []byte) (*models.RuleTable, error) {
	var rules models.RuleTable
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	for name, r := range rules.Ranges {
		if r.Min > r.Max {
			return nil, fmt.Errorf("range %s: min %g exceeds max %g", name, r.Min, r.Max)
		}
	}
	for name, r := range rules.RankedRanges {
		if r.Min > r.Max {
			return nil, fmt.Errorf("ranked range %s: min %g exceeds max %g", name, r.Min, r.Max)
		}
	}
	for i, pair := range rules.Exclusive {
		if len(pair) != 2 {
			return nil, fmt.Errorf("exclusive rule %d: expected 2 parameters, got %d", i, len(pair))
		}
	}
	for i, group := range append(append([][]string{}, rules.Groups...), rules.RankedGroups...) {
		if len(group) < 2 {
			return nil, fmt.Errorf("group rule %d: expected at least 2 parameters", i)
		}
	}
	return &rules, nil
}
