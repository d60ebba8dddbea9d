package domain

import "time"

// UserRole classifies accounts for authorization purposes.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAgent    UserRole = "agent"
	UserRoleAdmin    UserRole = "admin"
)

// User is the domain model for anyone who can authenticate: customers who
// file tickets and the support staff who work them.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsStaff reports whether the user is a support agent or administrator.
func (u *User) IsStaff() bool {
	return u.Role == UserRoleAgent || u.Role == UserRoleAdmin
}

// Ref returns a lightweight reference for embedding in aggregates.
func (u *User) Ref() *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Name: u.Name}
}
