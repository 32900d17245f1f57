package rbac

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roster-app/roster/internal/platform/httpx"
)

// Permission represents a named capability a user may hold.
type Permission string

// The closed permission catalog.
const (
	PermRead   Permission = "read"
	PermCreate Permission = "create"
	PermUpdate Permission = "update"
	PermDelete Permission = "delete"
	PermAdmin  Permission = "admin"
)

// ErrUnknownPermission is returned for tokens outside the catalog.
var ErrUnknownPermission = fmt.Errorf("%w: unknown permission", httpx.ErrValidation)

// catalog lists every permission in canonical order with its description.
var catalog = []struct {
	perm        Permission
	description string
}{
	{PermRead, "List and view person records"},
	{PermCreate, "Create person records"},
	{PermUpdate, "Edit person records"},
	{PermDelete, "Delete person records"},
	{PermAdmin, "Act on person records created by other users"},
}

// Description returns the human readable meaning of p.
func (p Permission) Description() string {
	for _, entry := range catalog {
		if entry.perm == p {
			return entry.description
		}
	}
	return ""
}

// ParsePermission normalizes and validates a single token.
func ParsePermission(token string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(token)))
	if p.bit() == 0 {
		return "", fmt.Errorf("%w %q", ErrUnknownPermission, strings.TrimSpace(token))
	}
	return p, nil
}

func (p Permission) bit() Set {
	for i, entry := range catalog {
		if entry.perm == p {
			return 1 << i
		}
	}
	return 0
}

// Set is an immutable set of permissions. The zero value is empty.
type Set uint8

// NewSet builds a Set from known permissions.
func NewSet(perms ...Permission) Set {
	var s Set
	for _, p := range perms {
		s |= p.bit()
	}
	return s
}

// AllPermissions returns the set holding every permission in the catalog.
func AllPermissions() Set {
	var s Set
	for _, entry := range catalog {
		s |= entry.perm.bit()
	}
	return s
}

// DefaultSet is granted to users registered without explicit permissions.
func DefaultSet() Set {
	return NewSet(PermRead)
}

// ParseSet validates tokens and collects them into a Set. Blank tokens are
// skipped, duplicates collapse and any unknown token rejects the whole list.
func ParseSet(tokens []string) (Set, error) {
	var s Set
	for _, token := range tokens {
		if strings.TrimSpace(token) == "" {
			continue
		}
		p, err := ParsePermission(token)
		if err != nil {
			return 0, err
		}
		s |= p.bit()
	}
	return s, nil
}

// ParseList parses the comma separated storage form, e.g. "read,create".
func ParseList(csv string) (Set, error) {
	return ParseSet(strings.Split(csv, ","))
}

// Has reports whether p is a member of the set.
func (s Set) Has(p Permission) bool {
	bit := p.bit()
	return bit != 0 && s&bit == bit
}

// Union returns the permissions held by either set.
func (s Set) Union(other Set) Set {
	return s | other
}

// IsEmpty reports whether the set holds no permission.
func (s Set) IsEmpty() bool {
	return s&AllPermissions() == 0
}

// Slice lists the members in canonical catalog order.
func (s Set) Slice() []Permission {
	perms := make([]Permission, 0, len(catalog))
	for _, entry := range catalog {
		if s.Has(entry.perm) {
			perms = append(perms, entry.perm)
		}
	}
	return perms
}

// Strings lists the members as plain strings.
func (s Set) Strings() []string {
	perms := s.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// String renders the comma separated storage form.
func (s Set) String() string {
	return strings.Join(s.Strings(), ",")
}

// MarshalJSON encodes the set as an array of permission names.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}
