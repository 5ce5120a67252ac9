package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garnizon.org/internal/auth"
	"garnizon.org/internal/fault"
)

// stubService lets each test script the auth core's behavior.
type stubService struct {
	loginFn          func(ctx context.Context, username, password string) (auth.TokenPair, error)
	refreshFn        func(ctx context.Context, token string) (auth.TokenPair, error)
	changePasswordFn func(ctx context.Context, userID int64, prev, next string) error
	authenticateFn   func(ctx context.Context, token string) (auth.AuthData, error)
	userFn           func(ctx context.Context, id int64) (*auth.User, error)
	requestScopeFn   func(ctx context.Context, data auth.AuthData) (auth.Scope, error)
}

func (s *stubService) Login(ctx context.Context, username, password string) (auth.TokenPair, error) {
	if s.loginFn == nil {
		return auth.TokenPair{}, fault.New(fault.Unimplemented, "not scripted")
	}
	return s.loginFn(ctx, username, password)
}

func (s *stubService) Refresh(ctx context.Context, token string) (auth.TokenPair, error) {
	if s.refreshFn == nil {
		return auth.TokenPair{}, fault.New(fault.Unimplemented, "not scripted")
	}
	return s.refreshFn(ctx, token)
}

func (s *stubService) ChangePassword(ctx context.Context, userID int64, prev, next string) error {
	if s.changePasswordFn == nil {
		return fault.New(fault.Unimplemented, "not scripted")
	}
	return s.changePasswordFn(ctx, userID, prev, next)
}

func (s *stubService) Authenticate(ctx context.Context, token string) (auth.AuthData, error) {
	if s.authenticateFn == nil {
		return auth.AuthData{}, fault.New(fault.Unauthenticated, "invalid token")
	}
	return s.authenticateFn(ctx, token)
}

func (s *stubService) User(ctx context.Context, id int64) (*auth.User, error) {
	if s.userFn == nil {
		return nil, fault.New(fault.Unimplemented, "not scripted")
	}
	return s.userFn(ctx, id)
}

func (s *stubService) RequestScope(ctx context.Context, data auth.AuthData) (auth.Scope, error) {
	if s.requestScopeFn == nil {
		return auth.Scope{ClassIDs: []int64{}, UnitIDs: []int64{}}, nil
	}
	return s.requestScopeFn(ctx, data)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestLoginEndpoint(t *testing.T) {
	svc := &stubService{
		loginFn: func(ctx context.Context, username, password string) (auth.TokenPair, error) {
			if username == "alice" && password == "secret" {
				return auth.TokenPair{AccessToken: "access-jwt", RefreshToken: "refresh-jwt"}, nil
			}
			return auth.TokenPair{}, fault.New(fault.InvalidArgument, "username or password is incorrect")
		},
	}
	handler := testAPI(t, svc).Handler()

	rr := postJSON(t, handler, "/authn/login", map[string]string{"username": "alice", "password": "secret"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pair))
	assert.Equal(t, "access-jwt", pair.AccessToken)
	assert.Equal(t, "refresh-jwt", pair.RefreshToken)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	svc := &stubService{
		loginFn: func(ctx context.Context, username, password string) (auth.TokenPair, error) {
			return auth.TokenPair{}, fault.New(fault.InvalidArgument, "username or password is incorrect")
		},
	}
	handler := testAPI(t, svc).Handler()

	rr := postJSON(t, handler, "/authn/login", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "incorrect")
	assert.NotContains(t, rr.Body.String(), "wrong", "submitted password must never echo back")
}

func TestLoginEndpointMissingFields(t *testing.T) {
	handler := testAPI(t, &stubService{}).Handler()
	rr := postJSON(t, handler, "/authn/login", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	svc := &stubService{
		refreshFn: func(ctx context.Context, token string) (auth.TokenPair, error) {
			require.Equal(t, "refresh-jwt", token)
			return auth.TokenPair{AccessToken: "new-access", RefreshToken: "refresh-jwt"}, nil
		},
	}
	handler := testAPI(t, svc).Handler()

	rr := postJSON(t, handler, "/authn/refresh", map[string]string{"token": "refresh-jwt"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pair))
	assert.Equal(t, "new-access", pair.AccessToken)
	assert.Equal(t, "refresh-jwt", pair.RefreshToken)
}

func TestMeEndpointUsesFreshScope(t *testing.T) {
	unitID := int64(5)
	svc := &stubService{
		authenticateFn: func(ctx context.Context, token string) (auth.AuthData, error) {
			require.Equal(t, "access-jwt", token)
			return auth.AuthData{
				UserID:      7,
				Permissions: []string{"classes:read"},
				Scope:       auth.Scope{ClassIDs: []int64{10}, UnitIDs: []int64{5}},
			}, nil
		},
		userFn: func(ctx context.Context, id int64) (*auth.User, error) {
			return &auth.User{ID: 7, Username: "alice", UnitID: &unitID, Status: auth.UserStatusActive}, nil
		},
		requestScopeFn: func(ctx context.Context, data auth.AuthData) (auth.Scope, error) {
			// Storage has moved on since the token was minted.
			return auth.Scope{ClassIDs: []int64{10, 11}, UnitIDs: []int64{5}}, nil
		},
	}
	handler := testAPI(t, svc).Handler()

	req := httptest.NewRequest(http.MethodGet, "/authn/me", nil)
	req.Header.Set("Authorization", "Bearer access-jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp meResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, []int64{10, 11}, resp.ValidClassIDs)
	assert.Equal(t, []int64{5}, resp.ValidUnitIDs)
}

func TestMeEndpointRequiresAuth(t *testing.T) {
	handler := testAPI(t, &stubService{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/authn/me", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/authn/me", nil)
	req.Header.Set("Authorization", "Token abc")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestChangePwdEndpoint(t *testing.T) {
	var gotUserID int64
	svc := &stubService{
		authenticateFn: func(ctx context.Context, token string) (auth.AuthData, error) {
			return auth.AuthData{UserID: 7}, nil
		},
		changePasswordFn: func(ctx context.Context, userID int64, prev, next string) error {
			gotUserID = userID
			if prev != "secret" {
				return fault.New(fault.InvalidArgument, "incorrect password")
			}
			return nil
		},
	}
	handler := testAPI(t, svc).Handler()

	body, _ := json.Marshal(map[string]string{"prevPassword": "secret", "password": "new-secret"})
	req := httptest.NewRequest(http.MethodPatch, "/authn/change-pwd", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer access-jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, int64(7), gotUserID)

	body, _ = json.Marshal(map[string]string{"prevPassword": "wrong", "password": "new-secret"})
	req = httptest.NewRequest(http.MethodPatch, "/authn/change-pwd", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer access-jwt")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnmatchedAuthenticatedRouteFallsThroughTo404(t *testing.T) {
	svc := &stubService{
		authenticateFn: func(ctx context.Context, token string) (auth.AuthData, error) {
			return auth.AuthData{UserID: 7}, nil
		},
	}
	handler := testAPI(t, svc).Handler()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent-resource", nil)
	req.Header.Set("Authorization", "Bearer access-jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code, "unmapped route passes authz and 404s at routing")
}

func TestHealthzIsPublic(t *testing.T) {
	handler := testAPI(t, &stubService{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
