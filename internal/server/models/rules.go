package models

// AccessRules are the declarative conditions a viewer must satisfy
// before a view is granted. An explicitly typed structure, not a
// free-shaped metadata map: absent rules mean "allow".
type AccessRules struct {
	// RequireAuth demands an authenticated viewer.
	RequireAuth bool

	// AllowedDomains restricts viewing to requests from these hostnames
	// (exact or subdomain match). Empty means no restriction.
	AllowedDomains []string

	// CustomLabels are owner-defined tags carried through untouched;
	// they take no part in evaluation.
	CustomLabels []string
}

// RequestContext is the viewer-side context the rule evaluator and the
// access log see. Populated by the transport layer; the core never
// authenticates users itself.
type RequestContext struct {
	// UserID is the authenticated viewer, empty when anonymous.
	UserID string

	// Hostname the request was served under.
	Hostname string

	IP        string
	UserAgent string
}

// Authenticated reports whether the request carries a verified user.
func (c RequestContext) Authenticated() bool {
	return c.UserID != ""
}
