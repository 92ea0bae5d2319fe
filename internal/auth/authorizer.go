// Package auth gates privileged operator commands to the configured admin
// identities.
package auth

type Authorizer struct {
	adminIDs map[int64]struct{}
}

func NewAuthorizer(adminIDs []int64) *Authorizer {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Authorizer{adminIDs: ids}
}

// IsAuthorized reports whether the user may run privileged commands. Pure
// lookup, no side effects.
func (a *Authorizer) IsAuthorized(userID int64) bool {
	_, ok := a.adminIDs[userID]
	return ok
}
