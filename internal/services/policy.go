package services

import "github.com/trackroom/backend/internal/models"

// Capability names one kind of mutating action a role may or may not take on
// a release. The matrix below is the single enforcement boundary: UI-level
// hiding of controls is advisory only.
type Capability string

const (
	// CapEditPayment covers fee and payment fields.
	CapEditPayment Capability = "edit_payment"
	// CapManageMembers covers inviting and removing team members.
	CapManageMembers Capability = "manage_members"
	// CapDeleteRelease covers destroying the release.
	CapDeleteRelease Capability = "delete_release"
	// CapEditRelease covers metadata, cover art, direction, status, specs,
	// tracks and share settings.
	CapEditRelease Capability = "edit_release"
	// CapEditCreative covers references, intent, elements and notes.
	CapEditCreative Capability = "edit_creative"
)

// capabilityMatrix is role × capability → allowed. RoleNone has no row:
// absence denies, which keeps the matrix auditable as one artifact.
var capabilityMatrix = map[models.Role]map[Capability]bool{
	models.RoleOwner: {
		CapEditPayment:   true,
		CapManageMembers: true,
		CapDeleteRelease: true,
		CapEditRelease:   true,
		CapEditCreative:  true,
	},
	models.RoleCollaborator: {
		CapEditRelease:  true,
		CapEditCreative: true,
	},
	models.RoleClient: {
		CapEditCreative: true,
	},
}

// Can reports whether the role grants the capability. Total over all inputs,
// no I/O, no side effects.
func Can(role models.Role, capability Capability) bool {
	return capabilityMatrix[role][capability]
}

func CanEditPayment(role models.Role) bool   { return Can(role, CapEditPayment) }
func CanManageMembers(role models.Role) bool { return Can(role, CapManageMembers) }
func CanDeleteRelease(role models.Role) bool { return Can(role, CapDeleteRelease) }
func CanEditRelease(role models.Role) bool   { return Can(role, CapEditRelease) }
func CanEditCreative(role models.Role) bool  { return Can(role, CapEditCreative) }
