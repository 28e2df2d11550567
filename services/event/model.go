package event

import "time"

// Event is a fundraising event donations can be addressed to. CreatedBy is
// nullable: events are commonly created by non-tenant actors, in which case
// donations fall through to the platform credentials.
type Event struct {
	ID        string     `gorm:"column:id;primaryKey"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
	Title     string     `gorm:"column:title"`
	CreatedBy *string    `gorm:"column:created_by;index"`
	StartsAt  *time.Time `gorm:"column:starts_at"`
	EndsAt    *time.Time `gorm:"column:ends_at"`
}
