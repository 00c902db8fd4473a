package domain

// Role is the authority an actor holds.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAgent    Role = "AGENT"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID   string
	Role Role
}

// DirectoryUser is the slice of a user account the engine reads when
// validating an assignment target. Accounts are managed elsewhere.
type DirectoryUser struct {
	ID     string
	Email  string
	Role   Role
	Active bool
}
