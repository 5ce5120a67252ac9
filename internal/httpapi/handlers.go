package httpapi

import (
	"net/http"
	"strings"

	"garnizon.org/internal/audit"
	"garnizon.org/internal/auth"
	"garnizon.org/internal/fault"
	"garnizon.org/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Token string `json:"token"`
}

type changePwdRequest struct {
	PrevPassword string `json:"prevPassword"`
	Password     string `json:"password"`
}

type meResponse struct {
	User          *auth.User `json:"user"`
	Permissions   []string   `json:"permissions"`
	ValidClassIDs []int64    `json:"validClassIds"`
	ValidUnitIDs  []int64    `json:"validUnitIds"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, fault.New(fault.InvalidArgument, err.Error()))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, r, fault.New(fault.InvalidArgument, "username and password are required"))
		return
	}

	pair, err := a.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		obs.CountAuthOutcome("login", "failure")
		audit.Event(r.Context(), "authn.login.failed", map[string]any{"username": req.Username})
		respondError(w, r, err)
		return
	}

	obs.CountAuthOutcome("login", "success")
	audit.Event(r.Context(), "authn.login.succeeded", map[string]any{"username": req.Username})
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, fault.New(fault.InvalidArgument, err.Error()))
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		respondError(w, r, fault.New(fault.InvalidArgument, "token is required"))
		return
	}

	pair, err := a.svc.Refresh(r.Context(), req.Token)
	if err != nil {
		obs.CountAuthOutcome("refresh", "failure")
		respondError(w, r, err)
		return
	}

	obs.CountAuthOutcome("refresh", "success")
	audit.Event(r.Context(), "authn.token.refreshed", nil)
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	data, ok := auth.AuthDataFromContext(r.Context())
	if !ok {
		respondError(w, r, fault.New(fault.Unauthenticated, "authentication required"))
		return
	}
	user, err := a.svc.User(r.Context(), data.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	// Prefer the scope the scope middleware computed this request; fall
	// back to the token's embedded claims.
	scope := data.Scope
	if fresh, ok := auth.ScopeFromContext(r.Context()); ok {
		scope = fresh
	}
	writeJSON(w, http.StatusOK, meResponse{
		User:          user,
		Permissions:   data.Permissions,
		ValidClassIDs: scope.ClassIDs,
		ValidUnitIDs:  scope.UnitIDs,
	})
}

func (a *API) handleChangePwd(w http.ResponseWriter, r *http.Request) {
	data, ok := auth.AuthDataFromContext(r.Context())
	if !ok {
		respondError(w, r, fault.New(fault.Unauthenticated, "authentication required"))
		return
	}
	var req changePwdRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, fault.New(fault.InvalidArgument, err.Error()))
		return
	}
	if req.PrevPassword == "" || req.Password == "" {
		respondError(w, r, fault.New(fault.InvalidArgument, "prevPassword and password are required"))
		return
	}

	if err := a.svc.ChangePassword(r.Context(), data.UserID, req.PrevPassword, req.Password); err != nil {
		obs.CountAuthOutcome("change_pwd", "failure")
		respondError(w, r, err)
		return
	}

	obs.CountAuthOutcome("change_pwd", "success")
	audit.Event(r.Context(), "authn.password.changed", map[string]any{"user_id": data.UserID})
	writeJSON(w, http.StatusOK, map[string]any{})
}
