package slot

import (
	"regexp"
	"strings"
)

// Extraction models occasionally emit literal placeholders instead of leaving
// a field empty ("unknown", "N/A", "<city>", "{{season}}"). Writing those into
// thread state would poison later turns, so they are filtered before merge.

var bracketed = regexp.MustCompile(`^\s*[\[<{(].*[\]>})]\s*$`)

var placeholderWords = map[string]bool{
	"unknown":        true,
	"n/a":            true,
	"na":             true,
	"null":           true,
	"nil":            true,
	"none":           true,
	"not specified":  true,
	"unspecified":    true,
	"not provided":   true,
	"not mentioned":  true,
	"tbd":            true,
	"...":            true,
	"…":         true,
	"your city":      true,
	"city name":      true,
	"destination":    true,
	"somewhere":      true,
	"anywhere":       true,
}

// IsPlaceholder reports whether an extracted value is a stand-in rather than
// real content and must not be merged into slot state.
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	if placeholderWords[v] {
		return true
	}
	if bracketed.MatchString(v) {
		return true
	}
	return false
}

// CleanDelta drops placeholder values from an extraction delta, returning
// only values safe to merge.
func CleanDelta(delta map[string]string) map[string]string {
	out := make(map[string]string, len(delta))
	for k, v := range delta {
		if IsPlaceholder(v) {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
