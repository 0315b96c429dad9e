package domain

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID   string
	Username string
	Roles    []string
	// TokenTransactionID is the transaction ID the access token was issued under.
	TokenTransactionID string
}

// HasAnyRole reports whether the principal holds at least one of the given roles.
func (p *Principal) HasAnyRole(names ...string) bool {
	for _, want := range names {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
