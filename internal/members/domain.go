// Package members manages the member directory, role memberships and
// direct permission grants.
package members

import "time"

// Member is a directory entry. PasswordHash never leaves the server.
type Member struct {
	ID           int64     `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Membership is one role assignment with its validity window.
type Membership struct {
	RoleID      int64      `json:"role_id"`
	Role        string     `json:"role"`
	Application string     `json:"application"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DirectGrant is an allow or deny attached straight to a member,
// bypassing roles.
type DirectGrant struct {
	PermissionID int64      `json:"permission_id"`
	Permission   string     `json:"permission"`
	Access       bool       `json:"access"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
