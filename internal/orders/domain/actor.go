package domain

import "strings"

// Role is the authorization role supplied by the upstream auth collaborator.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) Authenticated() bool {
	return strings.TrimSpace(a.UserID) != ""
}

func (a Actor) IsAdmin() bool {
	return a.Authenticated() && a.Role == RoleAdmin
}

// CanAccess reports whether the actor owns the order or administers orders.
func (a Actor) CanAccess(order Order) bool {
	if !a.Authenticated() {
		return false
	}
	return a.IsAdmin() || a.UserID == order.UserID
}
