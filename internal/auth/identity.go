// Package auth holds the acting-identity value object and the authorization
// policy predicates. The identity provider itself is external; this package
// only consumes what the transport layer resolved from the request.
package auth

// ModeratorGroup is the role group whose members may modify any listing.
const ModeratorGroup = "moderators"

// Identity describes the acting caller for one request. A nil *Identity
// means the caller is anonymous.
type Identity struct {
	UserID   uint
	Elevated bool
	Groups   []string
}

// InGroup reports whether the identity belongs to the named role group.
func (i *Identity) InGroup(name string) bool {
	if i == nil {
		return false
	}
	for _, g := range i.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// IsModerator reports membership in the moderator group.
func (i *Identity) IsModerator() bool {
	return i.InGroup(ModeratorGroup)
}
