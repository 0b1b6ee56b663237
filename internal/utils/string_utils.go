package utils

import "strings"

// TruncateString shortens a string to a maximum length.
func TruncateString(s string, maxLength int) string {
	if len(s) > maxLength {
		return s[:maxLength]
	}
	return s
}

// Preview returns a single-line, length-bounded rendition of s suitable
// for debug logging of stream fragments.
func Preview(s string, maxLength int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	return TruncateString(s, maxLength)
}

// SplitAndTrim splits a string by a separator, trimming whitespace and
// dropping empty entries.
func SplitAndTrim(s string, sep string) []string {
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
