// Package id provides the identifier used by every entity and cross-reference.
package id

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ID is the canonical text form of a UUIDv7. Lexical order follows creation
// order, so sorting by ID yields oldest-first.
type ID string

// New returns a fresh, time-ordered identifier.
func New() ID {
	return ID(uuid.Must(uuid.NewV7()).String())
}

// Parse validates s and returns it in canonical form.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(u.String()), nil
}

// ParseAll parses every element of ss, failing on the first malformed one.
func ParseAll(ss []string) ([]ID, error) {
	out := make([]ID, 0, len(ss))
	for _, s := range ss {
		v, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (i ID) String() string { return string(i) }

func (i ID) IsZero() bool { return i == "" }

// Strings converts ids to plain strings, e.g. for SQL array parameters.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for n, v := range ids {
		out[n] = string(v)
	}
	return out
}

// FromStrings converts without validation; use for values read back from storage.
func FromStrings(ss []string) []ID {
	out := make([]ID, len(ss))
	for n, s := range ss {
		out[n] = ID(s)
	}
	return out
}

// The helpers below treat a slice as an ordered set: insertion order is kept
// and an element appears at most once.

func Contains(set []ID, v ID) bool {
	return slices.Contains(set, v)
}

// Add appends each v not already present.
func Add(set []ID, vs ...ID) []ID {
	for _, v := range vs {
		if !slices.Contains(set, v) {
			set = append(set, v)
		}
	}
	return set
}

// Remove returns set without any of vs. The input slice is not modified.
func Remove(set []ID, vs ...ID) []ID {
	out := make([]ID, 0, len(set))
	for _, v := range set {
		if !slices.Contains(vs, v) {
			out = append(out, v)
		}
	}
	return out
}

// Unique drops repeated elements, keeping the first occurrence.
func Unique(ids []ID) []ID {
	return Add(make([]ID, 0, len(ids)), ids...)
}
