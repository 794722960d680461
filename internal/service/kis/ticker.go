package kis

import "strings"

// CleanTicker strips an exchange prefix like "KOSPI:" (case-insensitive,
// any tag) for the outbound request. Cache keys always keep the original
// form, so a prefixed and an unprefixed ticker stay distinct entries.
func CleanTicker(t string) string {
	if i := strings.IndexByte(t, ':'); i > 0 {
		return strings.TrimSpace(t[i+1:])
	}
	return strings.TrimSpace(t)
}
