package auth

import (
	"context"
	"slices"
	"strings"
)

// Roles carried in the Firebase custom claim. Customers only see their own orders; staff and admins
// operate on any order, and only admins manage the status catalog.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

// Identity is the end user behind a request, built from a verified Firebase ID token.
type Identity struct {
	UID   string
	Email string
	Roles []string
}

// HasRole compares case-insensitively; a blank role never matches.
func (i *Identity) HasRole(role string) bool {
	role = normaliseRole(role)
	if i == nil || role == "" {
		return false
	}
	return slices.ContainsFunc(i.Roles, func(r string) bool { return normaliseRole(r) == role })
}

// IsOperator reports whether the identity may act on orders owned by other users.
func (i *Identity) IsOperator() bool {
	return i.HasRole(RoleStaff) || i.HasRole(RoleAdmin)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	return identity, identity != nil
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
