package ctxutil

import (
	"context"

	"github.com/clearcite/integrity-engine/internal/domain"
)

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) *domain.Principal {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(principalKey{}).(*domain.Principal)
	return p
}
