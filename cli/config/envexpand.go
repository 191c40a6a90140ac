// Package config loads stitch.yaml for the stitch CLI.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in a config document.
// An unset or empty variable takes its fallback, or the empty string when
// there is none; Validate reports required fields left empty this way.
func ExpandEnv(input string) string {
	matches := envRef.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}
	out := make([]byte, 0, len(input))
	last := 0
	for _, m := range matches {
		out = append(out, input[last:m[0]]...)
		out = append(out, lookupEnv(input[m[2]:m[3]], submatch(input, m, 2))...)
		last = m[1]
	}
	return string(append(out, input[last:]...))
}

func lookupEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// submatch returns group n of match m, or "" when the group did not take part.
func submatch(s string, m []int, n int) string {
	if m[2*n] < 0 {
		return ""
	}
	return s[m[2*n]:m[2*n+1]]
}
