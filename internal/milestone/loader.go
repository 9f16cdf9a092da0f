package milestone

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed milestones.yaml
var defaultRules []byte

// Parse decodes a YAML list of rules and compiles each condition.
//
// Script format:
//
//   - id: streak_14
//     title: Two-Week Grind
//     description: 14 consecutive active days
//     when: longest_streak >= 14
func Parse(script []byte) ([]Rule, error) {
	rules := []Rule{}
	if err := yaml.Unmarshal(script, &rules); err != nil {
		return nil, err
	}

	env, err := NewEnv()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rules))
	for i := range rules {
		if seen[rules[i].ID] {
			return nil, fmt.Errorf("milestone %s: duplicate id", rules[i].ID)
		}
		seen[rules[i].ID] = true

		if err := rules[i].Init(env); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// LoadFromFile reads rules from file, or the built-in rule set when file is empty.
func LoadFromFile(file string) ([]Rule, error) {
	if file == "" {
		return Parse(defaultRules)
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}
