package enums

import (
	"fmt"
	"strings"
)

// ActorRole identifies who triggered a mutation.
type ActorRole string

const (
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleVendor   ActorRole = "vendor"
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleSystem   ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleCustomer,
	ActorRoleVendor,
	ActorRoleAdmin,
	ActorRoleSystem,
}

func (r ActorRole) String() string {
	return string(r)
}

func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole accepts any casing; system is never accepted from a token.
func ParseActorRole(value string) (ActorRole, error) {
	normalized := ActorRole(strings.ToLower(strings.TrimSpace(value)))
	if normalized == ActorRoleSystem || !normalized.IsValid() {
		return "", fmt.Errorf("invalid actor role %q", value)
	}
	return normalized, nil
}
