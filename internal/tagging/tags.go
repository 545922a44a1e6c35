// Package tagging holds the key/value tag map carried by every element and the
// rules the editor applies to it.
package tagging

import (
	"maps"
	"slices"
	"strings"
)

// Tags maps non-empty keys to non-empty values
type Tags map[string]string

// Sanitize returns a copy with keys and values trimmed; blank keys or values are dropped
func Sanitize(in map[string]string) Tags {
	out := make(Tags, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns an independent copy, never nil
func (t Tags) Clone() Tags {
	if t == nil {
		return Tags{}
	}
	return maps.Clone(t)
}

// Equal reports whether both maps hold the same pairs
func (t Tags) Equal(o Tags) bool {
	return maps.Equal(t, o)
}

// Get returns the value for key, or "" when absent
func (t Tags) Get(key string) string {
	return t[key]
}

// Has reports whether key is present
func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Keys returns the keys in sorted order
func (t Tags) Keys() []string {
	return slices.Sorted(maps.Keys(t))
}

// Mergeable reports whether two tag sets can be combined without asking the user:
// one of them is empty or they are equal
func Mergeable(a, b Tags) bool {
	return len(a) == 0 || len(b) == 0 || a.Equal(b)
}

// Union combines two tag sets. ok is false when a key carries different values.
func Union(a, b Tags) (result Tags, ok bool) {
	result = a.Clone()
	for k, v := range b {
		if old, exists := result[k]; exists && old != v {
			return nil, false
		}
		result[k] = v
	}
	return result, true
}

// AddSurveySource records that the value of key was surveyed on the ground
func AddSurveySource(t Tags, key string) Tags {
	out := t.Clone()
	if key == "" {
		out["source"] = "survey"
		return out
	}
	out["source:"+key] = "survey"
	return out
}
