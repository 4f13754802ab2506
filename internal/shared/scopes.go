package shared

// Permissions guarding the RAPS administration surface itself. They
// live in the same registry they protect, under the RAPS namespace.
const (
	PermRolesView = "RAPS.Roles.View"
	PermRolesEdit = "RAPS.Roles.Edit"

	PermMembersView = "RAPS.Members.View"
	PermMembersEdit = "RAPS.Members.Edit"

	PermPermissionsView = "RAPS.Permissions.View"
	PermPermissionsEdit = "RAPS.Permissions.Edit"

	PermAuditView = "RAPS.Audit.View"

	// PermRSOPView allows resolving another member's permission set.
	// Members may always resolve their own.
	PermRSOPView = "RAPS.RSOP.View"
)

// AdminScopes lists all permissions related to RAPS administration.
func AdminScopes() []string {
	return []string{
		PermRolesView,
		PermRolesEdit,
		PermMembersView,
		PermMembersEdit,
		PermPermissionsView,
		PermPermissionsEdit,
		PermAuditView,
		PermRSOPView,
	}
}
