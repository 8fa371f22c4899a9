package auth

// Policy selects who may act on a resource. Applied uniformly by the HTTP
// boundary before the engine is invoked.
type Policy int

const (
	// AdminOnly admits only administrators.
	AdminOnly Policy = iota
	// OwnerOnly admits only the resource owner.
	OwnerOnly
	// OwnerOrAdmin admits the resource owner and administrators.
	OwnerOrAdmin
)

// Allow reports whether the principal may act on a resource owned by
// ownerID under the given policy.
func Allow(p Principal, ownerID string, policy Policy) bool {
	switch policy {
	case AdminOnly:
		return p.IsAdmin()
	case OwnerOnly:
		return p.UserID == ownerID
	case OwnerOrAdmin:
		return p.IsAdmin() || p.UserID == ownerID
	default:
		return false
	}
}
