package auth

import (
	"context"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/permission"
)

type principalKey struct{}

func ContextWithPrincipal(ctx context.Context, p permission.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated actor. ok is false for anonymous requests.
func PrincipalFromContext(ctx context.Context) (permission.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(permission.Principal)
	return p, ok && p.ID != 0
}

// RequirePrincipal is PrincipalFromContext for handlers behind AuthMiddleware.
func RequirePrincipal(ctx context.Context) (permission.Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return permission.Principal{}, internal.ErrInvalidToken.WithMessage("authentication required")
	}
	return p, nil
}
