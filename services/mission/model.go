package mission

import (
	"time"

	"gorm.io/gorm"
)

// Frequency controls how often a mission can be completed. Recurring
// frequencies use a rolling window measured from the last completion, not
// calendar boundaries: daily means 24h after the previous completion,
// weekly 7 days, monthly/yearly one calendar month/year via AddDate.
type Frequency string

const (
	FrequencyOneTime Frequency = "one_time"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

func (f Frequency) Recurring() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	default:
		return false
	}
}

// NextEligibleAt returns the earliest moment a mission completed at last may
// be completed again. For one_time the completion itself is returned; the
// caller must treat one_time completions as permanent.
func (f Frequency) NextEligibleAt(last time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return last.Add(24 * time.Hour)
	case FrequencyWeekly:
		return last.Add(7 * 24 * time.Hour)
	case FrequencyMonthly:
		return last.AddDate(0, 1, 0)
	case FrequencyYearly:
		return last.AddDate(1, 0, 0)
	default:
		return last
	}
}

type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

// Mission is admin-managed catalog data, read-only for this engine.
type Mission struct {
	ID          string         `gorm:"column:id;primaryKey;type:char(26)"`
	Title       string         `gorm:"column:title;type:varchar(255);not null"`
	Description string         `gorm:"column:description;type:text"`
	Frequency   Frequency      `gorm:"column:frequency;type:varchar(20);not null;default:'one_time'"`
	ForAll      bool           `gorm:"column:for_all;not null;default:true"`
	Status      Status         `gorm:"column:status;type:varchar(20);not null;default:'available'"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`

	Requirements []Requirement `gorm:"foreignKey:MissionID"`
}

// Requirement ties an action key to a goal count within a mission.
// Immutable once created.
type Requirement struct {
	ID          string    `gorm:"column:id;primaryKey;type:char(26)"`
	MissionID   string    `gorm:"column:mission_id;index;not null"`
	Key         string    `gorm:"column:key;index;type:varchar(100);not null"`
	Goal        int64     `gorm:"column:goal;not null"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (Requirement) TableName() string {
	return "mission_requirements"
}

// UserProgress is the per-(user, requirement) counter. Progress never
// exceeds the requirement goal and Completed is never un-set by increments;
// only the recurring reset pass zeroes it.
type UserProgress struct {
	ID            string    `gorm:"column:id;primaryKey;type:char(26)"`
	UserID        string    `gorm:"column:user_id;uniqueIndex:idx_user_requirement;not null"`
	RequirementID string    `gorm:"column:requirement_id;uniqueIndex:idx_user_requirement;not null"`
	Progress      int64     `gorm:"column:progress;not null;default:0"`
	Completed     bool      `gorm:"column:completed;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (UserProgress) TableName() string {
	return "user_mission_progress"
}

// UserMission records mission completion per user. For one_time missions the
// completed flag is permanent; for recurring missions LastCompletedAt gates
// re-completion.
type UserMission struct {
	ID              string     `gorm:"column:id;primaryKey;type:char(26)"`
	UserID          string     `gorm:"column:user_id;uniqueIndex:idx_user_mission;not null"`
	MissionID       string     `gorm:"column:mission_id;uniqueIndex:idx_user_mission;not null"`
	Completed       bool       `gorm:"column:completed;not null;default:false"`
	LastCompletedAt *time.Time `gorm:"column:last_completed_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`

	Mission Mission `gorm:"foreignKey:MissionID"`
}
