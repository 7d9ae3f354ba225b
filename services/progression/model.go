package progression

import (
	"time"
)

// Level is immutable reference data ordered by the Level ordinal. Experience
// is the delta required to reach this level from the one below it, not a
// cumulative total.
type Level struct {
	ID         string    `gorm:"column:id;primaryKey;type:char(26)"`
	Level      int       `gorm:"column:level;uniqueIndex;not null"`
	Experience int64     `gorm:"column:experience;not null"`
	Coins      int64     `gorm:"column:coins;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// User is the slice of the platform user this engine owns: the intra-level
// experience counter and the current level.
type User struct {
	ID         string    `gorm:"column:id;primaryKey;type:char(26)"`
	Experience int64     `gorm:"column:experience;not null;default:0"`
	LevelID    string    `gorm:"column:level_id;index"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

// ExperienceGrant records a referenced award. The unique reference makes
// externally triggered awards replay-safe under queue redelivery.
type ExperienceGrant struct {
	ID        string    `gorm:"column:id;primaryKey;type:char(26)"`
	UserID    string    `gorm:"column:user_id;index;not null"`
	Reference string    `gorm:"column:reference;uniqueIndex;not null"`
	Amount    int64     `gorm:"column:amount;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}
