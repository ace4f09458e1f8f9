package models

import "github.com/google/uuid"

// PortalStatus is the release-level review state shown to portal visitors.
// It is always derived from the visible tracks' approval statuses; the
// stored column is a mirror kept for listing screens, never the authority.
type PortalStatus string

const (
	PortalStatusInReview  PortalStatus = "in_review"
	PortalStatusApproved  PortalStatus = "approved"
	PortalStatusDelivered PortalStatus = "delivered"
)

// ApprovalStatus is the per-track review workflow state.
type ApprovalStatus string

const (
	ApprovalAwaitingReview   ApprovalStatus = "awaiting_review"
	ApprovalChangesRequested ApprovalStatus = "changes_requested"
	ApprovalApproved         ApprovalStatus = "approved"
	ApprovalDelivered        ApprovalStatus = "delivered"
)

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalAwaitingReview, ApprovalChangesRequested, ApprovalApproved, ApprovalDelivered:
		return true
	default:
		return false
	}
}

// PortalShare is the 1:1 sharing configuration for a release. The token is
// the only credential a portal visitor has; revoking the share makes the
// token dead without touching any other row.
type PortalShare struct {
	BaseModel
	ReleaseID                 uuid.UUID    `json:"releaseID" gorm:"type:uuid;not null;uniqueIndex"`
	Token                     string       `json:"token" gorm:"type:varchar(64);not null;uniqueIndex"`
	Revoked                   bool         `json:"revoked" gorm:"not null;default:false"`
	ShowDirection             bool         `json:"showDirection" gorm:"not null;default:false"`
	ShowSpecs                 bool         `json:"showSpecs" gorm:"not null;default:false"`
	ShowReferences            bool         `json:"showReferences" gorm:"not null;default:false"`
	ShowPaymentStatus         bool         `json:"showPaymentStatus" gorm:"not null;default:false"`
	ShowDistribution          bool         `json:"showDistribution" gorm:"not null;default:false"`
	RequirePaymentForDownload bool         `json:"requirePaymentForDownload" gorm:"not null;default:false"`
	Status                    PortalStatus `json:"status" gorm:"type:varchar(20);not null;default:'in_review'"`

	Release         Release              `json:"-" gorm:"foreignKey:ReleaseID;references:ID"`
	TrackSettings   []PortalTrackSetting `json:"-" gorm:"foreignKey:ShareID"`
	VersionSettings []PortalVersionSetting `json:"-" gorm:"foreignKey:ShareID"`
}

func (PortalShare) TableName() string {
	return "portal_shares"
}

// PortalTrackSetting controls one track's presence in a portal. Tracks with
// no setting row are never shown (default-deny).
type PortalTrackSetting struct {
	BaseModel
	ShareID         uuid.UUID      `json:"shareID" gorm:"type:uuid;not null;index;uniqueIndex:idx_share_track"`
	TrackID         uuid.UUID      `json:"trackID" gorm:"type:uuid;not null;index;uniqueIndex:idx_share_track"`
	Visible         bool           `json:"visible" gorm:"not null;default:false"`
	DownloadEnabled bool           `json:"downloadEnabled" gorm:"not null;default:false"`
	ApprovalStatus  ApprovalStatus `json:"approvalStatus" gorm:"type:varchar(20);not null;default:'awaiting_review'"`
	Feedback        string         `json:"feedback" gorm:"type:text"`

	Share PortalShare `json:"-" gorm:"foreignKey:ShareID;references:ID"`
	Track Track       `json:"-" gorm:"foreignKey:TrackID;references:ID"`
}

func (PortalTrackSetting) TableName() string {
	return "portal_track_settings"
}

// PortalVersionSetting hides or surfaces one audio version inside a visible
// track. Same default-deny rule as tracks.
type PortalVersionSetting struct {
	BaseModel
	ShareID   uuid.UUID `json:"shareID" gorm:"type:uuid;not null;index;uniqueIndex:idx_share_version"`
	VersionID uuid.UUID `json:"versionID" gorm:"type:uuid;not null;index;uniqueIndex:idx_share_version"`
	Visible   bool      `json:"visible" gorm:"not null;default:false"`

	Share   PortalShare  `json:"-" gorm:"foreignKey:ShareID;references:ID"`
	Version AudioVersion `json:"-" gorm:"foreignKey:VersionID;references:ID"`
}

func (PortalVersionSetting) TableName() string {
	return "portal_version_settings"
}
