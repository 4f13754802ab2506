package permissions

// CreatePermissionRequest registers a new permission.
type CreatePermissionRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// UpdatePermissionRequest changes an existing permission.
type UpdatePermissionRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// ListPermissionsRequest filters the registry listing.
type ListPermissionsRequest struct {
	Scope  string `json:"scope,omitempty"`
	Search string `json:"search,omitempty"`
}
