package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses s as a base 10 int, falling back to def when s is
// blank or not a number.
func ParseIntDefault(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

// SplitList splits a comma separated env value, dropping blanks.
// "a, b,,c " gives [a b c]; an empty string gives nil.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
