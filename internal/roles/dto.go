package roles

// CreateRoleRequest registers a new role.
type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Application string `json:"application" validate:"required,max=50"`
	Description string `json:"description" validate:"max=500"`
}

// UpdateRoleRequest changes an existing role.
type UpdateRoleRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// GrantRequest attaches a permission to a role with an explicit
// allow/deny flag.
type GrantRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
	Access       *bool `json:"access" validate:"required"`
}

// SetGrantsRequest replaces the whole grant set of a role. An empty
// set clears every grant.
type SetGrantsRequest struct {
	Grants []GrantRequest `json:"grants" validate:"dive"`
}

// UpdateGrantRequest flips the access flag of an existing grant.
type UpdateGrantRequest struct {
	Access *bool `json:"access" validate:"required"`
}
