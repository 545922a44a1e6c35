// Package editerr defines the error kinds surfaced by the editing engine.
package editerr

import "errors"

// Kind classifies an error for the caller that decides how to surface it
type Kind int

const (
	KindNone Kind = iota
	KindGeometry
	KindInvariant
	KindMergeTagConflict
	KindNotReversible
	KindNoConnection
	KindWrongLogin
	KindUndefined
	KindParse
)

var (
	// ErrGeometry is returned when a coordinate leaves the valid domain
	ErrGeometry = errors.New("coordinates out of range")
	// ErrInvariant is returned when a mutation would break the element graph
	ErrInvariant = errors.New("storage invariant violated")
	// ErrMergeTagConflict is returned by merge and join when tags disagree
	ErrMergeTagConflict = errors.New("conflicting tags")
	// ErrNotReversible is returned when reversing a way whose direction is intrinsic
	ErrNotReversible = errors.New("way is not reversible")
	ErrNoConnection  = errors.New("no connection to server")
	ErrWrongLogin    = errors.New("wrong login")
	ErrUndefined     = errors.New("undefined server error")
	// ErrParse is returned for malformed OSM input
	ErrParse = errors.New("malformed OSM data")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrGeometry, KindGeometry},
	{ErrInvariant, KindInvariant},
	{ErrMergeTagConflict, KindMergeTagConflict},
	{ErrNotReversible, KindNotReversible},
	{ErrNoConnection, KindNoConnection},
	{ErrWrongLogin, KindWrongLogin},
	{ErrUndefined, KindUndefined},
	{ErrParse, KindParse},
}

// KindOf returns the kind of a (possibly wrapped) error.
// Errors that carry none of the sentinels map to KindUndefined; nil maps to KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUndefined
}

// String returns the upper-case name used in logs and metrics
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindGeometry:
		return "OSM_GEOMETRY"
	case KindInvariant:
		return "STORAGE_INVARIANT"
	case KindMergeTagConflict:
		return "MERGE_TAG_CONFLICT"
	case KindNotReversible:
		return "NOT_REVERSIBLE"
	case KindNoConnection:
		return "NO_CONNECTION"
	case KindWrongLogin:
		return "WRONG_LOGIN"
	case KindParse:
		return "PARSE"
	default:
		return "UNDEFINED_ERROR"
	}
}
