package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    RoleCategory
		wantErr bool
	}{
		{"student", RoleStudent, false},
		{"staff", RoleStaff, false},
		{"STAFF", RoleStaff, false},
		{"admin", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRoleCategory(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestMode_UnmarshalText(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("Staff")))
	assert.Equal(t, ModeStaff, m)

	err := m.UnmarshalText([]byte("parent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid Mode")
}

func TestCredential_Age(t *testing.T) {
	now := time.Now()
	cred := Credential{Identifier: "a@x.com", SavedAt: now.Add(-time.Hour)}

	assert.Equal(t, time.Hour, cred.Age(now))
}

func TestVerifiedUser_FullName(t *testing.T) {
	u := VerifiedUser{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", u.FullName())

	assert.Equal(t, "Ada", VerifiedUser{FirstName: "Ada"}.FullName())
	assert.Empty(t, VerifiedUser{}.FullName())
}
