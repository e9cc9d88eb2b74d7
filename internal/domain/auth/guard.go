package auth

// GuardDecision is the outcome of the role guard. When Match is false,
// WantMode names the portal mode the user's account belongs to, so callers
// can tell the user which portal to use instead.
type GuardDecision struct {
	Match    bool
	WantMode Mode
}

// ModeForRole returns the portal mode that serves a given role category.
func ModeForRole(role RoleCategory) Mode {
	switch role {
	case RoleStaff:
		return ModeStaff
	case RoleStudent:
		return ModeStudent
	default:
		// ParseRoleCategory keeps this unreachable for verified records.
		return ""
	}
}

// CheckRole compares a verified user's role category against the portal's
// operating mode. It is pure and side-effect free so it can be tested
// independently of navigation.
func CheckRole(u VerifiedUser, mode Mode) GuardDecision {
	want := ModeForRole(u.Role)
	if want == mode {
		return GuardDecision{Match: true}
	}
	return GuardDecision{Match: false, WantMode: want}
}
