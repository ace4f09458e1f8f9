package models

import "github.com/google/uuid"

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is a transient user-facing message. The mutation layer is the
// main producer: a failed field write lands here with enough payload for the
// UI to offer an explicit retry.
type Notification struct {
	BaseModel
	UserID  uuid.UUID              `json:"userID" gorm:"type:uuid;not null;index"`
	Kind    NotificationKind       `json:"kind" gorm:"type:varchar(20);not null"`
	Message string                 `json:"message" gorm:"type:text;not null"`
	Payload map[string]interface{} `json:"payload,omitempty" gorm:"type:jsonb;serializer:json"`
	IsRead  bool                   `json:"isRead" gorm:"not null;default:false;index"`
}

func (Notification) TableName() string {
	return "notifications"
}
