package domain

import "time"

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is the canonical identity record. Server responses arrive in several
// inconsistent shapes; internal/authapi adapts them into this type in one
// place and nothing else inspects the raw payloads.
type User struct {
	ID               string
	Email            string
	Name             string
	AvatarURL        string
	Plan             Plan
	EmailVerified    bool
	TwoFactorEnabled bool
	ActiveApps       []AppID
	Role             UserRole
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasActiveApp reports whether the user explicitly activated the app. This
// says nothing about entitlement; plan rules live in internal/entitlement.
func (u *User) HasActiveApp(app AppID) bool {
	if u == nil {
		return false
	}
	for _, a := range u.ActiveApps {
		if a == app {
			return true
		}
	}
	return false
}
