package permission

import (
	"fmt"
	"strings"
)

// Role is an organization-level role. Higher values are strict supersets of lower ones.
type Role int

const (
	RoleGuest Role = iota + 1
	RoleMemberRead
	RoleMemberFull
	RoleCoOwner
	RoleSystemAdmin
	RoleSuperUser
	RoleOwner
)

var roleNames = map[Role]string{
	RoleGuest:       "guest",
	RoleMemberRead:  "member_read",
	RoleMemberFull:  "member_full",
	RoleCoOwner:     "co_owner",
	RoleSystemAdmin: "system_admin",
	RoleSuperUser:   "super_user",
	RoleOwner:       "owner",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// AtLeast reports whether r sits at or above min in the role order.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r >= min
}

// ParseRole converts a stored role name. Unknown names are an error, never a default.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "pending"
	MembershipActive    MembershipStatus = "active"
	MembershipSuspended MembershipStatus = "suspended"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipPending, MembershipActive, MembershipSuspended:
		return true
	}
	return false
}
