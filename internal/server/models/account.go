package models

import (
	"strings"
	"time"
)

// Account is a registered user's identity and credential record. The
// credential and reset fields are owned by the account security services;
// profile fields belong to administration.
type Account struct {
	ID       string `json:"_id"`
	Identity string `json:"email"`

	CredentialHash       string    `json:"-"`
	LastCredentialChange time.Time `json:"-"`

	Privileged bool `json:"isAdmin"`
	Active     bool `json:"isActive"`

	FailureCount int        `json:"-"`
	LockedUntil  *time.Time `json:"-"`

	ResetToken       *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	Name  string `json:"name"`
	Title string `json:"title"`
	Role  string `json:"role"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeIdentity trims and lower-cases an email-like identity so that
// uniqueness is case-insensitive.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// ProfileUpdate carries the administrative profile edits. Nil fields are
// left unchanged. Credential fields are deliberately absent.
type ProfileUpdate struct {
	Name     *string
	Title    *string
	Role     *string
	Identity *string
	Active   *bool
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Title == nil && u.Role == nil && u.Identity == nil && u.Active == nil
}

// TeamMember is the projection returned by the team listing.
type TeamMember struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Title  string `json:"title"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Active bool   `json:"isActive"`
}

// Member projects an account onto the team listing.
func (a *Account) Member() TeamMember {
	return TeamMember{ID: a.ID, Name: a.Name, Title: a.Title, Role: a.Role, Email: a.Identity, Active: a.Active}
}
