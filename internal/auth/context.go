package auth

import "context"

type principalContextKey struct{}
type issuerContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// ContextWithIssuer records the issuer (the serving base URL) for tokens minted
// while handling the request.
func ContextWithIssuer(ctx context.Context, issuer string) context.Context {
	if issuer == "" {
		return ctx
	}
	return context.WithValue(ctx, issuerContextKey{}, issuer)
}

// IssuerFromContext returns the issuer stored by ContextWithIssuer.
func IssuerFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(issuerContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
