package models

type UserSnapshot struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	BusinessID int64    `json:"business_id"`
	Roles      []string `json:"roles,omitempty"`
}

// WithRoles returns a copy of the user with roles replaced
func (u UserSnapshot) WithRoles(roles []string) UserSnapshot {
	u.Roles = append([]string(nil), roles...)
	return u
}

type BusinessSnapshot struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	SupportEmail string `json:"support_email,omitempty"`
}
