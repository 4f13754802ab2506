package members

import "time"

// ListMembersRequest filters the directory listing.
type ListMembersRequest struct {
	Search     string `json:"search" validate:"max=100"`
	ActiveOnly bool   `json:"active_only"`
}

// CreateMemberRequest registers a new directory entry.
type CreateMemberRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=150"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=10"`
}

// UpdateMemberRequest changes directory fields.
type UpdateMemberRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=150"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// MembershipRequest assigns a role, optionally bounded by a window.
type MembershipRequest struct {
	RoleID    int64      `json:"role_id" validate:"required,gt=0"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// UpdateMembershipRequest changes the window of an assignment.
type UpdateMembershipRequest struct {
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// DirectGrantRequest attaches a permission straight to a member.
type DirectGrantRequest struct {
	PermissionID int64      `json:"permission_id" validate:"required,gt=0"`
	Access       *bool      `json:"access" validate:"required"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// UpdateDirectGrantRequest changes flag and/or window of a direct
// grant.
type UpdateDirectGrantRequest struct {
	Access    *bool      `json:"access" validate:"required"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}
