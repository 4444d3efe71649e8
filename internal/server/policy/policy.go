// Package policy checks new passwords against the complexity rules applied
// at registration, password change and password reset.
package policy

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/taskmanager/internal/common"
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

// Violation describes why a password was rejected. It matches
// common.ErrPasswordPolicy under errors.Is.
type Violation struct {
	Reason string
}

func (v *Violation) Error() string { return v.Reason }

func (v *Violation) Is(target error) bool { return target == common.ErrPasswordPolicy }

// Password defines password complexity requirements.
type Password struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// Default returns the policy enforced by the server.
func Default() Password {
	return Password{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}
}

// Check validates password. email and name, when not empty, must not appear
// in the password (case-insensitive).
func (p Password) Check(password, email, name string) error {
	if len(password) < p.MinLength {
		return &Violation{Reason: fmt.Sprintf("Password must be at least %d characters long", p.MinLength)}
	}

	var upper, lower, number, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			number = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	switch {
	case p.RequireUppercase && !upper:
		return &Violation{Reason: "Password must contain at least one uppercase letter"}
	case p.RequireLowercase && !lower:
		return &Violation{Reason: "Password must contain at least one lowercase letter"}
	case p.RequireNumber && !number:
		return &Violation{Reason: "Password must contain at least one number"}
	case p.RequireSpecial && !special:
		return &Violation{Reason: "Password must contain at least one special character"}
	}

	lowered := strings.ToLower(password)
	if email = strings.TrimSpace(email); email != "" && strings.Contains(lowered, strings.ToLower(email)) {
		return &Violation{Reason: "Password cannot contain your email"}
	}
	if name = strings.TrimSpace(name); name != "" && strings.Contains(lowered, strings.ToLower(name)) {
		return &Violation{Reason: "Password cannot contain your name"}
	}

	return nil
}
