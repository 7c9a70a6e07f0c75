// Package rules evaluates a secret's declarative access rules against a
// request context. Evaluation is a pure function: no I/O, no side
// effects, and a fixed check order (auth before domain) so denial
// reasons are deterministic.
package rules

import (
	"strings"

	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/server/models"
)

// Evaluate returns nil when the context satisfies the rules, or one of
// common.ErrAuthRequired / common.ErrDomainNotAllowed.
func Evaluate(r models.AccessRules, ctx models.RequestContext) error {
	if r.RequireAuth && !ctx.Authenticated() {
		return common.ErrAuthRequired
	}

	if len(r.AllowedDomains) > 0 && !domainAllowed(r.AllowedDomains, ctx.Hostname) {
		return common.ErrDomainNotAllowed
	}

	return nil
}

// domainAllowed matches hostname against allowed entries exactly or as a
// subdomain ("a.example.com" matches "example.com"). Comparison is
// case-insensitive.
func domainAllowed(allowed []string, hostname string) bool {
	h := strings.ToLower(strings.TrimSuffix(hostname, "."))
	if h == "" {
		return false
	}

	for _, d := range allowed {
		d = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if h == d || strings.HasSuffix(h, "."+d) {
			return true
		}
	}
	return false
}
