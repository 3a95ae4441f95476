package domain

// Role 사용자 역할
type Role string

const (
	RoleUser  Role = "user"
	RoleCast  Role = "cast"
	RoleStore Role = "store"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCast, RoleStore, RoleAdmin:
		return true
	}
	return false
}

// Resource is something a route or command guard protects
type Resource string

const (
	ResourceChat           Resource = "chat"
	ResourceGroupManage    Resource = "group.manage"
	ResourceBroadcast      Resource = "broadcast"
	ResourceLegalFile      Resource = "legal.file"
	ResourceAdminInspector Resource = "admin.inspector"
	ResourceAdminLegal     Resource = "admin.legal"
	ResourceAdminAudit     Resource = "admin.audit"
)

// accessTable role → resources it may use
var accessTable = map[Role]map[Resource]bool{
	RoleUser: {
		ResourceChat:      true,
		ResourceLegalFile: true,
	},
	RoleCast: {
		ResourceChat:      true,
		ResourceBroadcast: true,
		ResourceLegalFile: true,
	},
	RoleStore: {
		ResourceChat:        true,
		ResourceGroupManage: true,
		ResourceBroadcast:   true,
		ResourceLegalFile:   true,
	},
	RoleAdmin: {
		ResourceChat:           true,
		ResourceLegalFile:      true,
		ResourceAdminInspector: true,
		ResourceAdminLegal:     true,
		ResourceAdminAudit:     true,
	},
}

// CanAccess is the single authorization predicate consumed by guards
func CanAccess(role Role, resource Resource) bool {
	return accessTable[role][resource]
}
