package jobs

import (
	"net/url"
	"strings"
)

// HostOf extracts the lowercased host component of a URL, or "" if the URL
// cannot be parsed or carries no host.
func HostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// StripQuery removes the query string and fragment from a URL. The scheme,
// host, and path are left untouched so known hosts keep matching.
func StripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// Normalize derives Host from each posting's resolved URL, strips query
// strings from the resolved URLs, and keeps only postings whose host is in
// the allow-list. Postings without a usable resolved URL (nil, Blocked, or
// unparsable) derive an empty host and are dropped. Pure and synchronous.
func Normalize(postings []Posting, allowedHosts []string) []Posting {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}

	kept := make([]Posting, 0, len(postings))
	for _, p := range postings {
		if p.ResolvedURL == nil || *p.ResolvedURL == Blocked {
			continue
		}
		clean := StripQuery(*p.ResolvedURL)
		host := HostOf(clean)
		if host == "" {
			continue
		}
		if _, ok := allowed[host]; !ok {
			continue
		}
		p.ResolvedURL = &clean
		p.Host = host
		kept = append(kept, p)
	}
	return kept
}
