package domain

// Role is the marketplace authorization role attached to a user record.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleSeller Role = "SELLER"
	RoleBuyer  Role = "BUYER"
	// RoleUser is only produced by the development-mode auth bypass; it never
	// appears in the directory.
	RoleUser Role = "USER"
)

// Valid reports whether the role is one that may be stored in the directory.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleBuyer:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
