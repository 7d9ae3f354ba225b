package reward

import (
	"time"
)

// SourceType tags the entity a reward configuration hangs off.
type SourceType string

const (
	SourceMission SourceType = "mission"
	SourceLevel   SourceType = "level"
)

// Source identifies a concrete reward source, e.g. a specific mission.
type Source struct {
	Type SourceType
	ID   string
}

// RewardType selects the strategy used to grant a configured reward.
type RewardType string

const (
	RewardTitle      RewardType = "title"
	RewardCoins      RewardType = "coins"
	RewardExperience RewardType = "experience"
)

// Rewardable is a declarative reward configuration row: "completing source X
// grants reward Y". RewardID is set for entity rewards (titles), Amount for
// quantity rewards (coins, experience). Admin-managed, read-only here.
type Rewardable struct {
	ID          string     `gorm:"column:id;primaryKey;type:char(26)"`
	SourceType  SourceType `gorm:"column:source_type;type:varchar(20);index:idx_rewardables_source;not null"`
	SourceID    string     `gorm:"column:source_id;index:idx_rewardables_source;not null"`
	RewardType  RewardType `gorm:"column:reward_type;type:varchar(20);not null"`
	RewardID    string     `gorm:"column:reward_id"`
	Amount      int64      `gorm:"column:amount"`
	Description string     `gorm:"column:description;type:text"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

// Title is a cosmetic badge users collect.
type Title struct {
	ID        string    `gorm:"column:id;primaryKey;type:char(26)"`
	Name      string    `gorm:"column:name;type:varchar(100);not null"`
	Slug      string    `gorm:"column:slug;uniqueIndex;type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// UserTitle marks a title as owned by a user.
type UserTitle struct {
	ID        string    `gorm:"column:id;primaryKey;type:char(26)"`
	UserID    string    `gorm:"column:user_id;uniqueIndex:idx_user_title;not null"`
	TitleID   string    `gorm:"column:title_id;uniqueIndex:idx_user_title;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}
