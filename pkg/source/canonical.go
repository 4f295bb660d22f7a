package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Canonicalizer maps the many spellings of a source URL to one key.
type Canonicalizer struct {
	host    string
	aliases map[string]bool
	aliasRe *regexp.Regexp
}

// NewCanonicalizer creates a Canonicalizer for host. aliases are hosts that
// serve the same articles and are rewritten to host.
func NewCanonicalizer(host string, aliases []string) *Canonicalizer {
	c := &Canonicalizer{host: normalizeHost(host), aliases: make(map[string]bool)}

	var alts []string
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		c.aliases[normalizeHost(a)] = true
		alts = append(alts, regexp.QuoteMeta(strings.TrimPrefix(a, "www.")))
	}
	if len(alts) > 0 {
		c.aliasRe = regexp.MustCompile(`(?i)https?://(?:www\.)?(?:` + strings.Join(alts, "|") + `)\b`)
	}
	return c
}

func normalizeHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}

// Host returns the canonical host.
func (c *Canonicalizer) Host() string {
	return c.host
}

// Canonicalize returns the canonical form of raw: https, lower-case host
// without www, aliases mapped to the canonical host, no query or fragment,
// and no trailing slash.
func (c *Canonicalizer) Canonicalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + strings.TrimLeft(raw, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}

	host := normalizeHost(u.Hostname())
	if c.aliases[host] {
		host = c.host
	}
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}

	u.Scheme = "https"
	u.Host = host
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	return u.String(), nil
}

// RepairDomains rewrites links to alias hosts in text so they point at the
// canonical host.
func (c *Canonicalizer) RepairDomains(text string) string {
	if c.aliasRe == nil {
		return text
	}
	return c.aliasRe.ReplaceAllString(text, "https://"+c.host)
}

// Slug returns the last path segment of a canonical URL, reduced to
// lower-case ASCII letters, digits and hyphens.
func Slug(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segs[len(segs)-1]
	if dec, err := url.PathUnescape(last); err == nil {
		last = dec
	}

	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(last) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(sb.String(), "-")
}
