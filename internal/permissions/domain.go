// Package permissions manages the permission registry. Permission
// names are namespaced by instance, e.g. "RAPS.Admin" or
// "VMACS.VMACS_SD.Orders".
package permissions

import "time"

// Permission represents an atomic capability.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
