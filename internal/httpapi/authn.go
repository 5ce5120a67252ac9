package httpapi

import (
	"net/http"
	"strings"

	"garnizon.org/internal/auth"
	"garnizon.org/internal/fault"
)

const (
	authHeader   = "Authorization"
	bearerScheme = "Bearer "
)

var publicPaths = map[string]struct{}{
	"/authn/login":   {},
	"/authn/refresh": {},
	"/healthz":       {},
	"/readyz":        {},
	"/v1/info":       {},
	"/metrics":       {},
}

func isPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// withAuth verifies the bearer token on every non-public request and
// attaches the decoded identity to the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			respondError(w, r, err)
			return
		}

		data, err := a.svc.Authenticate(r.Context(), token)
		if err != nil {
			respondError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithAuthData(r.Context(), data)))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", fault.New(fault.Unauthenticated, "missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerScheme)) {
		return "", fault.New(fault.Unauthenticated, "invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerScheme):])
	if token == "" {
		return "", fault.New(fault.Unauthenticated, "missing bearer token")
	}
	return token, nil
}
