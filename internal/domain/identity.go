package domain

import "fmt"

// Role designates what a caller may do.
type Role string

const (
	RoleLibrarian Role = "librarian"
	RoleMember    Role = "member"
)

// Valid reports whether r is a known role designator.
func (r Role) Valid() bool {
	return r == RoleLibrarian || r == RoleMember
}

func (r Role) String() string {
	return string(r)
}

// Identity is the verified caller of a request. It is never persisted by the
// catalog or borrow services; the identity verifier supplies it per request.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Authorize is the single policy check for protected operations.
// Returns ErrForbidden when the identity does not hold the required role.
func Authorize(identity Identity, required Role) error {
	if identity.Role != required {
		return fmt.Errorf("%w: %s requires role %q", ErrForbidden, identity.Username, required)
	}

	return nil
}
