package authapi

import (
	"time"

	"github.com/dimichiko/kitportal/internal/domain"
)

// userPayload tolerates every identity shape the API has shipped. Older
// responses use avatar/isEmailVerified, newer ones avatarUrl/emailVerified,
// and a few endpoints still send displayName instead of name. This adapter
// is the single place where those shapes are reconciled.
type userPayload struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	DisplayName      string   `json:"displayName"`
	Avatar           string   `json:"avatar"`
	AvatarURL        string   `json:"avatarUrl"`
	Plan             string   `json:"plan"`
	IsEmailVerified  *bool    `json:"isEmailVerified"`
	EmailVerified    *bool    `json:"emailVerified"`
	TwoFactorEnabled bool     `json:"twoFactorEnabled"`
	ActiveApps       []string `json:"activeApps"`
	Role             string   `json:"role"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

func (p *userPayload) toDomain() *domain.User {
	if p == nil {
		return nil
	}
	u := &domain.User{
		ID:               p.ID,
		Email:            p.Email,
		Name:             p.Name,
		AvatarURL:        p.AvatarURL,
		Plan:             domain.ParsePlan(p.Plan),
		TwoFactorEnabled: p.TwoFactorEnabled,
		Role:             domain.UserRole(p.Role),
	}
	if u.Name == "" {
		u.Name = p.DisplayName
	}
	if u.AvatarURL == "" {
		u.AvatarURL = p.Avatar
	}
	if p.EmailVerified != nil {
		u.EmailVerified = *p.EmailVerified
	} else if p.IsEmailVerified != nil {
		u.EmailVerified = *p.IsEmailVerified
	}
	if u.Role == "" {
		u.Role = domain.UserRoleUser
	}
	for _, raw := range p.ActiveApps {
		if app, ok := domain.ParseApp(raw); ok && !u.HasActiveApp(app) {
			u.ActiveApps = append(u.ActiveApps, app)
		}
	}
	u.CreatedAt = parseTimestamp(p.CreatedAt)
	u.UpdatedAt = parseTimestamp(p.UpdatedAt)
	return u
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
