package domain

import (
	"net/url"
	"strings"
)

const maxSlugLength = 60

// Slugify converts text to its canonical URL slug: lowercase ASCII letters
// and digits separated by single hyphens. Punctuation inside names becomes a
// hyphen, so "Claude 3.5 Sonnet" and "claude 3-5 sonnet" produce the same
// slug. The same function backs generation, storage keys, and lookup.
func Slugify(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastHyphen := true // suppress leading hyphens
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
		if i := strings.LastIndexByte(slug, '-'); i > maxSlugLength*7/10 {
			slug = slug[:i]
		}
		slug = strings.TrimRight(slug, "-")
	}
	return slug
}

// ComparisonSlug derives the canonical slug for a tool pair. Order is
// preserved: the pair (A, B) always produces the same string, which resolves
// back to the same comparison document.
func ComparisonSlug(tool1Name, tool2Name string) string {
	return Slugify(tool1Name) + "-vs-" + Slugify(tool2Name)
}

// NormalizeURL reduces a URL to its registry identity: no scheme, no "www.",
// no query, no fragment, no trailing slash, lowercased host.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		// Retry with an assumed scheme for bare "example.com/x" inputs.
		parsed, err = url.Parse("https://" + raw)
		if err != nil || parsed.Host == "" {
			return strings.ToLower(strings.TrimSuffix(raw, "/"))
		}
	}

	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimSuffix(parsed.Path, "/")
	return host + path
}
