package models

// Role is a user's resolved permission tier for one release. It is computed
// per request from ownership and membership rows, never stored. RoleNone
// means "no relationship" and is distinct from any lookup error.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleCollaborator Role = "collaborator"
	RoleClient       Role = "client"
	RoleNone         Role = "none"
)
