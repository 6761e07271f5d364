package tenant

import (
	"net"
	"net/http"
	"strings"
)

// Identity is the tenant derived from a request host. An empty Username
// means the host could not be resolved.
type Identity struct {
	Username string `json:"username"`
	Valid    bool   `json:"valid"`
}

// Rules holds the root domains tenants may live under and the subdomain
// labels that never name a tenant. Both are compared case-insensitively.
type Rules struct {
	RootDomains []string `yaml:"root_domains"`
	Reserved    []string `yaml:"reserved"`
}

// DefaultRules returns the compiled-in allow-list and reserved words.
func DefaultRules() Rules {
	return Rules{
		RootDomains: []string{"buildarclabs.in", "cofounds.in"},
		Reserved:    []string{"www", "api", "admin", "app", "mail", "blog", "docs"},
	}
}

// Resolve resolves hosts against DefaultRules.
func Resolve(hosts ...string) Identity {
	return DefaultRules().Resolve(hosts...)
}

// Resolve picks the first non-empty host candidate and extracts a tenant
// from it. Callers pass candidates in priority order, forwarded host first.
func (r Rules) Resolve(hosts ...string) Identity {
	host := firstNonEmpty(hosts)
	if host == "" {
		return Identity{}
	}
	host = stripPort(host)

	parts := strings.Split(host, ".")

	if len(parts) >= 3 {
		sub := parts[0]
		domain := strings.Join(parts[1:], ".")
		if sub != "" && r.isRootDomain(domain) && !r.isReserved(sub) {
			return Identity{Username: sub, Valid: true}
		}
	}

	// Development bypass: alice.localhost, alice.localhost:5173 and friends.
	if len(parts) >= 2 && parts[0] != "" && strings.Contains(strings.ToLower(parts[1]), "localhost") {
		return Identity{Username: parts[0], Valid: true}
	}

	return Identity{}
}

func (r Rules) isRootDomain(domain string) bool {
	for _, d := range r.RootDomains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}

func (r Rules) isReserved(sub string) bool {
	for _, w := range r.Reserved {
		if strings.EqualFold(w, sub) {
			return true
		}
	}
	return false
}

// HostCandidates returns the host values of r in resolution priority:
// the first X-Forwarded-Host entry, then the Host header.
func HostCandidates(r *http.Request) []string {
	var out []string
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		out = append(out, strings.TrimSpace(first))
	}
	return append(out, r.Host)
}

func firstNonEmpty(hosts []string) string {
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			return h
		}
	}
	return ""
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
