package sos

import "time"

// Role is the authorization role of a directory identity.
type Role string

const (
	// RoleUser is the default role of every new identity.
	RoleUser Role = "user"
	// RoleResponder marks identities that receive and claim alerts.
	RoleResponder Role = "responder"
)

// ParseRole validates an assignable role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleResponder:
		return Role(s), true
	default:
		return "", false
	}
}

// User is an identity in the directory.
type User struct {
	// ID is the opaque identity.
	ID string
	// Role controls eligibility for alerts and claims.
	Role Role
	// Email is used for admin policy checks.
	Email string
	// DisplayName is shown in alert messages.
	DisplayName string
	// IDNumber is an optional institution-issued number.
	IDNumber string
	// Phone is the SMS destination, optional.
	Phone string
	// Site scopes responders to a campus or site.
	Site string
	// OnDuty marks responders currently accepting alerts.
	OnDuty bool
	// CreatedAt is when the identity was first stored.
	CreatedAt time.Time
}

// Responder is the resolver's view of an eligible on-duty responder.
type Responder struct {
	// ID is the responder identity.
	ID string
	// Phone is the SMS destination, empty when unknown.
	Phone string
	// PushAddressCount is how many push addresses the responder has registered.
	PushAddressCount int
}

// Contact is a trusted contact of an alert originator.
type Contact struct {
	// Name is the contact's label, optional.
	Name string
	// Phone is the SMS destination, empty when unknown.
	Phone string
}

// Identity is the verified caller of an operation.
type Identity struct {
	// UID is the caller's directory identity.
	UID string
	// Role is the caller's role as asserted by the identity provider.
	Role Role
	// Email is the caller's verified email, optional.
	Email string
}

// IsResponder reports whether the caller may claim alerts.
func (i *Identity) IsResponder() bool {
	return i != nil && i.Role == RoleResponder
}
