package utils

import (
	"net/url"
	"strconv"
)

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseLimit parses a "limit" query value. Missing or malformed values fall back
// to def; everything else is clamped to [lo, hi].
func ParseLimit(raw string, def, lo, hi int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return ClampInt(n, lo, hi)
}

// ParseOptionalInt reads an optional integer parameter. An absent key yields
// nil; a key that is present but empty or malformed is an error.
func ParseOptionalInt(values url.Values, key string) (*int, error) {
	raw, ok := values[key]
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(raw[0])
	if err != nil {
		return nil, err
	}
	return &n, nil
}
