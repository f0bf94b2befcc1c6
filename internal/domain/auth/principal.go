// Package auth carries the request-scoped principal resolved by the
// upstream auth layer. The order core never mints or refreshes tokens; it
// only consumes an already-authenticated identity.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Roles recognised by the order core.
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
)

// ErrUnauthenticated is returned when an operation requires a principal and
// none is present on the context. There is no anonymous fallback identity.
var ErrUnauthenticated = errors.New("no authenticated principal")

// Principal is the identity attached to every authenticated request.
// VendorID is empty unless Role is RoleVendor.
type Principal struct {
	UserID   string
	Role     string
	VendorID string
}

// IsVendor reports whether the principal acts on behalf of a vendor.
func (p Principal) IsVendor() bool {
	return p.Role == RoleVendor && p.VendorID != ""
}

type principalKey struct{}

// WithPrincipal returns a context carrying the given principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext extracts the principal from the context.
// It returns ErrUnauthenticated when no principal is present or the
// principal has no user id.
func FromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}
