package models

import "github.com/google/uuid"

// PaymentStatus mirrors the billing integration's view of a release. It is
// written only by the billing webhook boundary; everything else reads it.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type ReleaseFormat string

const (
	ReleaseFormatSingle ReleaseFormat = "single"
	ReleaseFormatEP     ReleaseFormat = "ep"
	ReleaseFormatAlbum  ReleaseFormat = "album"
)

type Release struct {
	BaseModel
	Title           string        `json:"title" gorm:"type:varchar(255);not null"`
	Artist          string        `json:"artist" gorm:"type:varchar(255);not null"`
	Format          ReleaseFormat `json:"format" gorm:"type:varchar(20);not null;default:'single'"`
	Status          string        `json:"status" gorm:"type:varchar(30);not null;default:'in_progress'"`
	OwnerID         uuid.UUID     `json:"ownerID" gorm:"type:uuid;not null;index"`
	GlobalDirection string        `json:"globalDirection" gorm:"type:text"`
	Specs           string        `json:"specs" gorm:"type:text"`
	References      string        `json:"references" gorm:"type:text"`
	Notes           string        `json:"notes" gorm:"type:text"`
	Distribution    string        `json:"distribution" gorm:"type:text"`
	FeeTotal        int64         `json:"feeTotal" gorm:"not null;default:0"`
	PaymentStatus   PaymentStatus `json:"paymentStatus" gorm:"type:varchar(20);not null;default:'unpaid'"`
	CoverArtPath    *string       `json:"coverArtPath,omitempty" gorm:"type:text"`

	Owner   User            `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Tracks  []Track         `json:"tracks,omitempty" gorm:"foreignKey:ReleaseID"`
	Members []ReleaseMember `json:"-" gorm:"foreignKey:ReleaseID"`
}

func (Release) TableName() string {
	return "releases"
}
