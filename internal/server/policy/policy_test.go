package policy

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	p := Default()

	tests := []struct {
		name     string
		password string
		email    string
		user     string
		reason   string
	}{
		{name: "ok", password: "Str0ng!Pass"},
		{name: "ok with context", password: "NewPass1!", email: "alice@example.com", user: "Alice"},
		{name: "too short", password: "Ab1!", reason: "Password must be at least 8 characters long"},
		{name: "no upper", password: "str0ng!pass", reason: "Password must contain at least one uppercase letter"},
		{name: "no lower", password: "STR0NG!PASS", reason: "Password must contain at least one lowercase letter"},
		{name: "no number", password: "Strong!Pass", reason: "Password must contain at least one number"},
		{name: "no special", password: "Str0ngPass", reason: "Password must contain at least one special character"},
		{name: "contains email", password: "X1!alice@example.com", email: "Alice@Example.com", reason: "Password cannot contain your email"},
		{name: "contains name", password: "Bobby#2024x", user: "bobby", reason: "Password cannot contain your name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check(tt.password, tt.email, tt.user)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.reason)
			assert.True(t, errors.Is(err, common.ErrPasswordPolicy))
		})
	}
}

func TestCheck_RelaxedPolicy(t *testing.T) {
	p := Password{MinLength: 4}
	assert.NoError(t, p.Check("abcd", "", ""))
}
