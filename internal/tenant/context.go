package tenant

import (
	"context"
	"net/http"
)

type ctxKeyIdentity struct{}

// Middleware resolves the tenant for every request and stores it in the
// request context. Unresolved hosts are passed through; handlers decide
// how to present them.
func Middleware(rules Rules) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := rules.Resolve(HostCandidates(r)...)
			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

// FromContext returns the Identity stored by Middleware, or the zero
// (unresolved) Identity.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKeyIdentity{}).(Identity)
	return id
}
