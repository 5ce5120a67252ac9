package httpapi

import (
	"net/http"

	"garnizon.org/internal/auth"
	"garnizon.org/internal/obs"
)

// withScope attaches the caller's freshly computed scope to the request.
// This stage never blocks a request: missing identity or a scope lookup
// failure attaches an empty scope and continues. Identity enforcement is
// the permission middleware's job.
func (a *API) withScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		data, ok := auth.AuthDataFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r.WithContext(auth.ContextWithScope(r.Context(), emptyScope())))
			return
		}

		scope, err := a.svc.RequestScope(r.Context(), data)
		if err != nil {
			obs.Logger().WithError(err).WithField("user_id", data.UserID).Warn("scope resolution failed")
			next.ServeHTTP(w, r.WithContext(auth.ContextWithScope(r.Context(), emptyScope())))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithScope(r.Context(), scope)))
	})
}

func emptyScope() auth.Scope {
	return auth.Scope{ClassIDs: []int64{}, UnitIDs: []int64{}}
}
