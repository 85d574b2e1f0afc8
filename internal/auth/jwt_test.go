package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithaiwala/sweetshop/internal/users"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("test_secret", time.Hour)

	token, err := m.Issue("user-1", users.RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, users.RoleAdmin, claims.Role)
}

func TestParse_WrongSecret(t *testing.T) {
	token, err := NewManager("secret_a", time.Hour).Issue("user-1", users.RoleUser)
	require.NoError(t, err)

	_, err = NewManager("secret_b", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Expired(t *testing.T) {
	m := NewManager("test_secret", -time.Minute)
	token, err := m.Issue("user-1", users.RoleUser)
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Garbage(t *testing.T) {
	m := NewManager("test_secret", time.Hour)
	_, err := m.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
