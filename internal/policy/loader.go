package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML policy file and returns a validated Policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}

func validate(pol *Policy) error {
	for _, kw := range pol.Gate.BlockedKeywords {
		if strings.TrimSpace(kw) == "" || strings.ContainsAny(kw, " \t\n") {
			return fmt.Errorf("gate.blocked_keywords entry %q: must be a single non-empty word", kw)
		}
	}
	for _, p := range pol.Gate.BlockedPatterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return fmt.Errorf("gate.blocked_patterns entry %q: %w", p, err)
		}
	}
	for name, tp := range pol.Tables {
		if name == "" {
			return fmt.Errorf("tables contains an empty key")
		}
		for col, cp := range tp.Columns {
			if col == "" {
				return fmt.Errorf("tables[%q].columns contains an empty key", name)
			}
			if !cp.Mask.Valid() {
				return fmt.Errorf("tables[%q].columns[%q].mask: invalid value %q (allowed: redact, hash, partial, null)", name, col, cp.Mask)
			}
		}
	}
	return nil
}
