package tagging

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules configures how edits treat particular tags
type Rules struct {
	// NotReversible lists tags whose way direction is intrinsic.
	// An empty value list matches any value of the key.
	NotReversible map[string][]string `yaml:"not_reversible,omitempty"`
	// Oneway lists keys that encode travel direction
	Oneway []string `yaml:"oneway,omitempty"`
	// Discardable lists keys dropped whenever an element's tags are edited
	Discardable []string `yaml:"discardable,omitempty"`
	// Restrictable lists keys whose ways may take part in turn restrictions
	Restrictable []string `yaml:"restrictable,omitempty"`
}

// LoadRules loads rules from a YAML file; missing sections fall back to the defaults
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	def := DefaultRules()
	if rules.NotReversible == nil {
		rules.NotReversible = def.NotReversible
	}
	if rules.Oneway == nil {
		rules.Oneway = def.Oneway
	}
	if rules.Discardable == nil {
		rules.Discardable = def.Discardable
	}
	if rules.Restrictable == nil {
		rules.Restrictable = def.Restrictable
	}
	return &rules, nil
}

// DefaultRules returns the built-in rules
func DefaultRules() *Rules {
	return &Rules{
		NotReversible: map[string][]string{
			"waterway": {},
			"natural":  {"cliff", "coastline", "earth_bank"},
			"barrier":  {"retaining_wall", "kerb", "guard_rail", "city_wall"},
			"man_made": {"embankment"},
			"highway":  {"motorway"},
			"junction": {"roundabout"},
		},
		Oneway:       []string{"oneway"},
		Discardable:  []string{"created_by", "odbl", "odbl:note"},
		Restrictable: []string{"highway"},
	}
}

// IsNotReversible reports whether tags make a way's direction intrinsic
func (r *Rules) IsNotReversible(tags Tags) bool {
	return matchAny(r.NotReversible, tags)
}

// HasOneway reports whether tags carry a direction-dependent key with a value
// other than no, false or 0
func (r *Rules) HasOneway(tags Tags) bool {
	for _, key := range r.Oneway {
		if !tags.Has(key) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(tags.Get(key))) {
		case "no", "false", "0":
			continue
		}
		return true
	}
	return false
}

// IsRestrictable reports whether a way with these tags may carry a turn restriction
func (r *Rules) IsRestrictable(tags Tags) bool {
	for _, key := range r.Restrictable {
		if tags.Has(key) {
			return true
		}
	}
	return false
}

// Clean sanitizes tags and drops discardable keys
func (r *Rules) Clean(in map[string]string) Tags {
	out := Sanitize(in)
	for _, key := range r.Discardable {
		delete(out, key)
	}
	return out
}

// matchAny checks tags against key -> values rules
func matchAny(rules map[string][]string, tags Tags) bool {
	for key, values := range rules {
		tagValue, ok := tags[key]
		if !ok {
			continue
		}
		// If no specific values, any value matches
		if len(values) == 0 {
			return true
		}
		for _, v := range values {
			if v == tagValue || v == "*" {
				return true
			}
		}
	}
	return false
}
