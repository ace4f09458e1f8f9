package models

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole is the stored role on a membership row. The owner is never
// duplicated as a member row; ownership lives on the release itself.
type MemberRole string

const (
	MemberRoleCollaborator MemberRole = "collaborator"
	MemberRoleClient       MemberRole = "client"
)

func (r MemberRole) IsValid() bool {
	switch r {
	case MemberRoleCollaborator, MemberRoleClient:
		return true
	default:
		return false
	}
}

type ReleaseMember struct {
	BaseModel
	ReleaseID   uuid.UUID  `json:"releaseID" gorm:"type:uuid;not null;index;uniqueIndex:idx_release_user"`
	UserID      uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_release_user"`
	Role        MemberRole `json:"role" gorm:"type:varchar(20);not null"`
	InvitedByID uuid.UUID  `json:"invitedByID" gorm:"type:uuid;not null"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`

	Release Release `json:"-" gorm:"foreignKey:ReleaseID;references:ID"`
	User    User    `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

func (ReleaseMember) TableName() string {
	return "release_members"
}

// IsAccepted reports whether the invite has been accepted. Pending
// memberships grant no access at all.
func (m *ReleaseMember) IsAccepted() bool {
	return m.AcceptedAt != nil
}
