package model

import "strings"

// UserProfile is the cached display identity of the signed-in user.
type UserProfile struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// DisplayName returns the name to greet the user with. It falls back to the
// local part of the email address, and to "User" when nothing is known.
func (u *UserProfile) DisplayName() string {
	if u == nil {
		return "User"
	}
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if local := EmailLocalPart(u.Email); local != "" {
		return local
	}
	return "User"
}

// EmailLocalPart returns the substring before the first "@".
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// Session is the client's record of an authenticated identity.
// A session without a token is unauthenticated, whatever User holds.
type Session struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user,omitempty"`
}

// HasToken reports whether a non-empty bearer token is present.
func (s Session) HasToken() bool {
	return strings.TrimSpace(s.Token) != ""
}

// TrustedUser returns the profile only when a token backs it.
func (s Session) TrustedUser() *UserProfile {
	if !s.HasToken() {
		return nil
	}
	return s.User
}
