package domain

import (
	"fmt"
	"strings"
)

// Role is the privilege level of the caller.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleReviewer  Role = "REVIEWER"
	RoleAnnotator Role = "ANNOTATOR"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleReviewer, RoleAnnotator:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(normalizeEnum(s))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: invalid role %q", ErrValidation, s)
	}
	return r, nil
}

// MaxActorIDLength bounds actor ids so they fit the actor columns.
const MaxActorIDLength = 64

// Actor identifies who is performing an operation. Identity extraction happens
// at the edge; the workflow only consumes the resolved capability.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: actor id is required", ErrForbidden)
	}
	if len(a.ID) > MaxActorIDLength {
		return fmt.Errorf("%w: actor id exceeds %d characters", ErrForbidden, MaxActorIDLength)
	}
	if !a.Role.IsValid() {
		return fmt.Errorf("%w: actor role %q is not recognized", ErrForbidden, a.Role)
	}
	return nil
}

// CanManageBatches reports whether the actor may create, fill, shrink and delete batches.
func (a Actor) CanManageBatches() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}

// CanReview reports whether the actor holds reviewer privilege.
func (a Actor) CanReview() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager || a.Role == RoleReviewer
}
