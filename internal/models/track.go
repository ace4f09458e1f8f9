package models

import "github.com/google/uuid"

type Track struct {
	BaseModel
	ReleaseID uuid.UUID `json:"releaseID" gorm:"type:uuid;not null;index"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Position  int       `json:"position" gorm:"not null;default:0"`
	Notes     string    `json:"notes" gorm:"type:text"`

	Release  Release        `json:"-" gorm:"foreignKey:ReleaseID;references:ID"`
	Versions []AudioVersion `json:"versions,omitempty" gorm:"foreignKey:TrackID"`
}

func (Track) TableName() string {
	return "tracks"
}

// AudioVersion is one uploaded mix of a track. Superseded versions stay in
// the authoring view; the portal only shows versions an editor surfaced.
type AudioVersion struct {
	BaseModel
	TrackID     uuid.UUID `json:"trackID" gorm:"type:uuid;not null;index"`
	Label       string    `json:"label" gorm:"type:varchar(100);not null"`
	ObjectPath  string    `json:"objectPath" gorm:"type:text;not null"`
	ContentType string    `json:"contentType" gorm:"type:varchar(100);not null"`
	Size        int64     `json:"size" gorm:"not null;default:0"`

	Track Track `json:"-" gorm:"foreignKey:TrackID;references:ID"`
}

func (AudioVersion) TableName() string {
	return "audio_versions"
}
