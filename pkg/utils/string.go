package utils

// Truncate shortens s to at most maxLen runes, appending "..." when
// anything was cut.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
