package utils

import "unicode/utf8"

// MaskSecret keeps the first and last two characters of a credential for logs.
// Example: "sk_live_abcdef" -> "sk***ef"
func MaskSecret(s string) string {
	if len(s) <= 6 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}

// TruncateForLog cuts s to at most maxLen bytes on a rune boundary and marks the cut.
// Used to attach raw webhook payloads to audit log lines.
func TruncateForLog(s string, maxLen int) string {
	if maxLen <= 0 {
		return "..."
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
