package actorctx

import (
	"context"

	"github.com/geocoder89/fintechindex/internal/auth"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	v, ok := ctx.Value(ctxKey{}).(auth.Identity)

	return v, ok && v.SubjectID != ""
}

// EmailOr returns the caller's email, or fallback for anonymous requests.
func EmailOr(ctx context.Context, fallback string) string {
	if id, ok := IdentityFrom(ctx); ok && id.Email != "" {
		return id.Email
	}
	return fallback
}
