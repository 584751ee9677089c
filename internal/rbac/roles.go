package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner = "owner"
	RoleStaff = "staff"
	RoleAdmin = "admin" // platform operators, cross-business
)

func IsAdmin(role string) bool { return role == RoleAdmin }
