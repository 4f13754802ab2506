// Package roles manages roles, their application scope and their
// permission grants.
package roles

import "time"

// Role represents a permission grouping scoped to one application
// instance (e.g. "VIPER", "VMACS_SD", "ClinicalScheduler").
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Application string    `json:"application"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Grant ties a permission to a role. Access false is an explicit deny.
type Grant struct {
	RoleID       int64     `json:"role_id"`
	PermissionID int64     `json:"permission_id"`
	Permission   string    `json:"permission"`
	Access       bool      `json:"access"`
	CreatedAt    time.Time `json:"created_at"`
}

// Member is one member of a role, with the membership window.
type Member struct {
	MemberID    int64      `json:"member_id"`
	DisplayName string     `json:"display_name"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}
