package auth

// Package auth contains domain-level types for portal sessions.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
	"time"
)

// RoleCategory is the account category carried by a verified user record.
// It is a closed set; parsing rejects anything outside it so an unknown
// category is caught at the edge rather than silently compared as a string.
type RoleCategory string

const (
	RoleStudent RoleCategory = "student"
	RoleStaff   RoleCategory = "staff"
)

// ParseRoleCategory parses a role category from its wire form.
func ParseRoleCategory(s string) (RoleCategory, error) {
	switch RoleCategory(strings.ToLower(s)) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleStaff:
		return RoleStaff, nil
	default:
		return "", fmt.Errorf("unknown role category: %q", s)
	}
}

// Mode is the portal's operating mode, fixed per deployment: a deployment
// serves either student accounts or staff accounts, never both.
type Mode string

const (
	ModeStudent Mode = "student"
	ModeStaff   Mode = "staff"
)

// UnmarshalText implements encoding.TextUnmarshaler so Mode can be parsed
// directly from environment configuration.
func (m *Mode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "student", "staff":
		*m = Mode(v)
		return nil
	default:
		return fmt.Errorf("invalid Mode: %q (valid options: student, staff)", v)
	}
}

// VerifiedUser is the authoritative user record returned by the school
// directory. It is trusted only when produced by the verification client in
// the current process lifetime; a persisted credential alone never grants
// access.
type VerifiedUser struct {
	ID         string            `json:"id"`
	Identifier string            `json:"identifier"` // sign-in email
	FirstName  string            `json:"first_name"`
	LastName   string            `json:"last_name"`
	Role       RoleCategory      `json:"role"`
	Flags      map[string]bool   `json:"flags,omitempty"`
	Profile    map[string]string `json:"profile,omitempty"`
}

// FullName returns the user's display name.
func (u VerifiedUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Credential is the locally persisted record used to re-establish a session
// without re-entering a password. SavedAt is set to "now" only at sign-in or
// at a successful verification, never backdated.
type Credential struct {
	Identifier string    `json:"identifier"`
	SavedAt    time.Time `json:"saved_at"`
}

// Age returns how long ago the credential was saved.
func (c Credential) Age(now time.Time) time.Duration {
	return now.Sub(c.SavedAt)
}

// Phase is the orchestrator's session state tag. Loading is the only initial
// phase; the other two are terminal until an explicit sign-out, expiry, or
// mismatch event.
type Phase string

const (
	PhaseLoading         Phase = "loading"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticated   Phase = "authenticated"
)

// EventKind labels a session lifecycle event for the audit trail.
type EventKind string

const (
	EventSignIn   EventKind = "sign_in"
	EventSignOut  EventKind = "sign_out"
	EventRefresh  EventKind = "refresh"
	EventExpired  EventKind = "expired"
	EventMismatch EventKind = "role_mismatch"
	EventNotFound EventKind = "not_found"
)

// SessionEvent records one session lifecycle transition.
type SessionEvent struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	Identifier string    `json:"identifier"`
	Mode       Mode      `json:"mode"`
	Path       string    `json:"path,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
