package auth

import "bazaar/internal/models"

// CanModifyListing decides whether identity may update or delete listing.
// Reads are always public and never consult this predicate.
//
// Allowed: the listing's author, elevated (staff/admin) identities, and
// moderator-group members. Everyone else, including anonymous callers,
// is denied. Pure predicate, no lookups.
func CanModifyListing(identity *Identity, listing *models.Listing) bool {
	if identity == nil {
		return false
	}
	if identity.UserID == listing.AuthorID {
		return true
	}
	if identity.Elevated {
		return true
	}
	return identity.IsModerator()
}

// CanManageTaxonomy gates explicit Category and Tag create/update/delete.
// Only elevated identities qualify; authorship and moderator membership do
// not apply to these entities.
func CanManageTaxonomy(identity *Identity) bool {
	return identity != nil && identity.Elevated
}
