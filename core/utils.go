package core

import (
	"strings"

	"github.com/google/uuid"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NewID returns a new random record ID.
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether id could be a record ID; lookups with malformed IDs are plain "not found".
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// StringIn reports whether s is one of vals.
func StringIn(s string, vals ...string) bool {
	for _, v := range vals {
		if s == v {
			return true
		}
	}
	return false
}

// UniqueStrings returns vals without duplicates nor empty strings, keeping order.
func UniqueStrings(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
