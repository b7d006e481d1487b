// Package access decides which analytics rows a caller may see. It never
// talks to Redis: every decision is made from the caller's resolved
// permissions so a cache outage cannot widen access.
package access

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrScopeSpoofing = errors.New("access: claimed scope is not granted")
	ErrUnknownScope  = errors.New("access: unknown scope")
)

// Scope is how broadly a caller may read analytics data.
type Scope string

const (
	ScopeAll          Scope = "all"
	ScopeOrganization Scope = "organization"
	ScopeOwn          Scope = "own"
)

const (
	PermissionReadAll          = "analytics:read:all"
	PermissionReadOrganization = "analytics:read:organization"
	PermissionReadOwn          = "analytics:read:own"

	// PermissionCacheAdmin guards warming, invalidation and cache stats.
	PermissionCacheAdmin = "analytics:cache:admin"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeAll, ScopeOrganization, ScopeOwn:
		return true
	}
	return false
}

// Permission is the grant a caller needs to claim the scope.
func (s Scope) Permission() string {
	switch s {
	case ScopeAll:
		return PermissionReadAll
	case ScopeOrganization:
		return PermissionReadOrganization
	case ScopeOwn:
		return PermissionReadOwn
	}
	return ""
}

// SeesCrossProvider reports whether rows without a provider are visible.
func (s Scope) SeesCrossProvider() bool {
	return s == ScopeAll || s == ScopeOrganization
}

// NeedsProviders reports whether the scope is bounded by providers, so a
// missing provider list denies everything.
func (s Scope) NeedsProviders() bool {
	return s == ScopeOwn
}

// UserContext is a caller's claimed scope together with what the
// permission service says they can access. For the organization scope a nil
// AccessibleProviderUIDs means no provider restriction; the own scope sees
// nothing without a provider list.
type UserContext struct {
	UserID                 string
	OrganizationID         string
	Scope                  Scope
	Permissions            []string
	AccessiblePracticeUIDs []int
	AccessibleProviderUIDs []int
}

func (u UserContext) HasPermission(permission string) bool {
	return slices.Contains(u.Permissions, permission)
}

// ValidateScope rejects a claimed scope the caller's permissions do not back.
func ValidateScope(u UserContext) error {
	if !u.Scope.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownScope, u.Scope)
	}
	if !u.HasPermission(u.Scope.Permission()) {
		return fmt.Errorf("%w: user %s claimed %q", ErrScopeSpoofing, u.UserID, u.Scope)
	}
	return nil
}

// ScopeResolver loads a caller's permissions and accessible entities.
type ScopeResolver interface {
	Resolve(ctx context.Context, userID string, claimed Scope) (*UserContext, error)
}
