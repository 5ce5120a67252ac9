package auth

import "context"

type authDataContextKey struct{}
type scopeContextKey struct{}

// ContextWithAuthData attaches the verified caller identity to the context.
func ContextWithAuthData(ctx context.Context, data AuthData) context.Context {
	return context.WithValue(ctx, authDataContextKey{}, &data)
}

// AuthDataFromContext extracts the caller identity from the context.
func AuthDataFromContext(ctx context.Context) (AuthData, bool) {
	if ctx == nil {
		return AuthData{}, false
	}
	v, ok := ctx.Value(authDataContextKey{}).(*AuthData)
	if !ok || v == nil {
		return AuthData{}, false
	}
	return *v, true
}

// ContextWithScope stores the freshly computed request scope. This is the
// scope the scope middleware derived this request, not the one embedded
// in the token.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, &scope)
}

// ScopeFromContext returns the request scope if the scope middleware ran.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	v, ok := ctx.Value(scopeContextKey{}).(*Scope)
	if !ok || v == nil {
		return Scope{}, false
	}
	return *v, true
}
