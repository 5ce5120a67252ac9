package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"garnizon.org/internal/audit"
	"garnizon.org/internal/auth"
	"garnizon.org/internal/fault"
	"garnizon.org/internal/obs"
)

// AuthService is the auth core as consumed by the HTTP layer. Satisfied
// by *auth.Service; tests substitute fakes.
type AuthService interface {
	Login(ctx context.Context, username, password string) (auth.TokenPair, error)
	Refresh(ctx context.Context, token string) (auth.TokenPair, error)
	ChangePassword(ctx context.Context, userID int64, prevPassword, newPassword string) error
	Authenticate(ctx context.Context, token string) (auth.AuthData, error)
	User(ctx context.Context, id int64) (*auth.User, error)
	RequestScope(ctx context.Context, data auth.AuthData) (auth.Scope, error)
}

// ReadyProbe reports whether downstream dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// RateLimitConfig tunes the per-IP token bucket.
type RateLimitConfig struct {
	Burst     int
	PerSecond int
}

// API is the HTTP layer. All dependencies are injected at construction;
// there are no package-level singletons.
type API struct {
	router  *mux.Router
	svc     AuthService
	probe   ReadyProbe
	version string
	perms   *PermissionTable
	rate    RateLimitConfig
}

func New(svc AuthService, probe ReadyProbe, version string, perms *PermissionTable, rate RateLimitConfig) *API {
	a := &API{
		router:  mux.NewRouter(),
		svc:     svc,
		probe:   probe,
		version: version,
		perms:   perms,
		rate:    rate,
	}

	a.router.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	a.router.HandleFunc("/readyz", a.handleReadyz).Methods(http.MethodGet)
	a.router.HandleFunc("/v1/info", a.handleInfo).Methods(http.MethodGet)
	a.router.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	a.router.HandleFunc("/authn/login", a.handleLogin).Methods(http.MethodPost)
	a.router.HandleFunc("/authn/refresh", a.handleRefresh).Methods(http.MethodPost)
	a.router.HandleFunc("/authn/me", a.handleMe).Methods(http.MethodGet)
	a.router.HandleFunc("/authn/change-pwd", a.handleChangePwd).Methods(http.MethodPatch)

	a.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "resource not found"})
	})

	return a
}

// Handler returns the full middleware chain around the router. The chain
// also covers unmatched paths so scope and permission enforcement run
// before the 404.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = a.requirePermissions(h)
	h = a.withScope(h)
	h = a.withAuth(h)
	h = RateLimit(h, a.rate.Burst, a.rate.PerSecond)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "garnizon-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.probe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "garnizon-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// respondError translates the error taxonomy to a transport status
// exactly once. The concrete cause is logged; clients see only the
// classified message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	rid := audit.RequestIDFromContext(r.Context())

	entry := obs.Logger().WithFields(map[string]any{
		"kind":       kind.String(),
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": rid,
	})
	if kind == fault.Internal {
		entry.WithError(err).Error("request failed")
	} else {
		entry.Info("request rejected")
	}

	writeJSON(w, statusForKind(kind), errorResponse{
		Error:     fault.Message(err),
		Kind:      kind.String(),
		RequestID: rid,
	})
}

func statusForKind(kind fault.Kind) int {
	switch kind {
	case fault.InvalidArgument:
		return http.StatusBadRequest
	case fault.Unauthenticated:
		return http.StatusUnauthorized
	case fault.PermissionDenied:
		return http.StatusForbidden
	case fault.AlreadyExists:
		return http.StatusConflict
	case fault.Unimplemented:
		return http.StatusNotImplemented
	case fault.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
