package notification

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a persisted in-app notification row. Rows are written by
// the deliver task, never by callers directly.
type Notification struct {
	ID        string         `gorm:"column:id;primaryKey;type:char(26)"`
	UserID    string         `gorm:"column:user_id;index;not null"`
	Icon      string         `gorm:"column:icon;type:varchar(50)"`
	Title     string         `gorm:"column:title;type:varchar(255);not null"`
	ActionURL string         `gorm:"column:action_url;type:varchar(255)"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	ReadAt    *time.Time     `gorm:"column:read_at"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
