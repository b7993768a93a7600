package orgs

import (
	"fmt"
	"strings"
	"unicode"
)

// Slugify derives a URL-safe slug from a display name: lower-cased, runs of
// non-alphanumerics collapsed to single hyphens, trimmed. Deterministic; a
// renamed organization keeps its original slug.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // swallow leading separators
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// nextSlug picks the first free slug among base, base-2, base-3, ... given
// the set of slugs already taken.
func nextSlug(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
