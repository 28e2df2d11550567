package tenant

import (
	"time"

	"github.com/lib/pq"
)

// RoleOrganization marks tenants allowed to receive event-routed donations
// through their own gateway wallet.
const RoleOrganization = "organization"

type TenantStatus string

var (
	Pending   TenantStatus = "pending"
	Active    TenantStatus = "active"
	Suspended TenantStatus = "suspended"
	Archived  TenantStatus = "archived"
)

func (t TenantStatus) String() string {
	switch t {
	case Pending, Active, Suspended, Archived:
		return string(t)
	default:
		return ""
	}
}

type Tenant struct {
	ID        string         `gorm:"column:id;primaryKey"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
	Name      string         `gorm:"column:name"`
	Slug      string         `gorm:"column:slug;uniqueIndex"`
	Roles     pq.StringArray `gorm:"column:roles;type:text[]"`
	Status    TenantStatus   `gorm:"column:status"`
}

func (m *Tenant) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}
