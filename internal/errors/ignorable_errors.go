package errors

import "strings"

// ignorableErrorFragments lists substrings of transport errors caused by
// the client going away. These are logged at debug level and never
// treated as upstream failures.
var ignorableErrorFragments = []string{
	"context canceled",
	"connection reset by peer",
	"broken pipe",
	"use of closed network connection",
	"request canceled",
}

// IsIgnorableError reports whether err represents a client-side
// disconnect rather than a genuine upstream failure. Matching is
// substring-based and case-sensitive.
func IsIgnorableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, fragment := range ignorableErrorFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
