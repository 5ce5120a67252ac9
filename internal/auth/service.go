package auth

import (
	"context"
	"errors"

	"garnizon.org/internal/fault"
	"garnizon.org/internal/obs"
)

// Service orchestrates the login, refresh and password-change flows. It
// is stateless per request; all mutable state lives in the stores.
type Service struct {
	users  UserStore
	perms  PermissionStore
	scopes *ScopeResolver
	hasher *PasswordHasher
	tokens *TokenIssuer
}

func NewService(users UserStore, perms PermissionStore, scopes *ScopeResolver, hasher *PasswordHasher, tokens *TokenIssuer) (*Service, error) {
	if users == nil || perms == nil || scopes == nil || hasher == nil || tokens == nil {
		return nil, errors.New("auth: all service dependencies are required")
	}
	return &Service{users: users, perms: perms, scopes: scopes, hasher: hasher, tokens: tokens}, nil
}

// Login verifies credentials and issues an access/refresh token pair. The
// access token embeds the user's permissions and scope; the refresh token
// carries identity only.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	if username == "" || password == "" {
		return TokenPair{}, fault.New(fault.InvalidArgument, "username or password is incorrect")
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.Logger().WithField("username", username).Info("login rejected: unknown user")
			return TokenPair{}, fault.New(fault.InvalidArgument, "username or password is incorrect")
		}
		return TokenPair{}, err
	}
	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		obs.Logger().WithField("user_id", user.ID).Info("login rejected: bad password")
		return TokenPair{}, fault.New(fault.InvalidArgument, "username or password is incorrect")
	}
	if user.Status != UserStatusActive {
		obs.Logger().WithField("user_id", user.ID).Info("login rejected: account not active")
		return TokenPair{}, fault.New(fault.Unauthenticated, "account is not active")
	}
	return s.issuePair(ctx, user)
}

// Refresh verifies a refresh token and issues a fresh access token.
// Permissions and scope are recomputed from storage, never trusted from
// the refresh token (which carries none). The refresh token itself is
// returned unchanged.
func (s *Service) Refresh(ctx context.Context, token string) (TokenPair, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.TokenType != TokenTypeRefresh {
		obs.Logger().WithField("user_id", claims.UserID).Info("refresh rejected: not a refresh token")
		return TokenPair{}, fault.New(fault.Unauthenticated, "invalid token")
	}
	user, err := s.users.Find(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, fault.New(fault.Unauthenticated, "invalid token")
		}
		return TokenPair{}, err
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, fault.New(fault.Unauthenticated, "account is not active")
	}
	permissions, scope, err := s.claimInputs(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(user, permissions, scope)
	if err != nil {
		return TokenPair{}, fault.Wrap(fault.Internal, "failed to generate tokens", err)
	}
	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     token,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ChangePassword verifies the previous password and persists a hash of
// the new one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, prevPassword, newPassword string) error {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fault.New(fault.Unauthenticated, "invalid token")
		}
		return err
	}
	ok, err := s.hasher.Verify(user.PasswordHash, prevPassword)
	if err != nil {
		return err
	}
	if !ok {
		obs.Logger().WithField("user_id", user.ID).Info("password change rejected: bad previous password")
		return fault.New(fault.InvalidArgument, "incorrect password")
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fault.New(fault.Unauthenticated, "invalid token")
		}
		return err
	}
	return nil
}

// Authenticate verifies an access token and reconstructs the caller's
// request-scoped identity from its claims.
func (s *Service) Authenticate(ctx context.Context, token string) (AuthData, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return AuthData{}, err
	}
	if claims.TokenType != TokenTypeAccess {
		return AuthData{}, fault.New(fault.Unauthenticated, "invalid token")
	}
	return AuthData{
		UserID:      claims.UserID,
		IsSuperUser: claims.IsSuperUser,
		Status:      claims.Status,
		Permissions: claims.Permissions,
		Scope: Scope{
			ClassIDs: claims.ValidClassIDs,
			UnitIDs:  claims.ValidUnitIDs,
		},
	}, nil
}

// User loads the account for an authenticated caller, for the profile
// endpoint.
func (s *Service) User(ctx context.Context, id int64) (*User, error) {
	user, err := s.users.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.New(fault.Unauthenticated, "invalid token")
		}
		return nil, err
	}
	return user, nil
}

// RequestScope computes the caller's current scope fresh from storage.
// Superadmins get the global scope; everyone else gets the subtree rooted
// at their unit, looked up per request rather than trusted from the token.
func (s *Service) RequestScope(ctx context.Context, data AuthData) (Scope, error) {
	if data.IsSuperUser {
		return s.scopes.ResolveAll(ctx)
	}
	user, err := s.users.Find(ctx, data.UserID)
	if err != nil {
		return Scope{}, err
	}
	if user.UnitID == nil {
		return Scope{}, fault.New(fault.InvalidArgument, "user doesn't have unit")
	}
	return s.scopes.Resolve(ctx, *user.UnitID)
}

func (s *Service) issuePair(ctx context.Context, user *User) (TokenPair, error) {
	permissions, scope, err := s.claimInputs(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(user, permissions, scope)
	if err != nil {
		return TokenPair{}, fault.Wrap(fault.Internal, "failed to generate tokens", err)
	}
	refreshToken, refreshExp, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return TokenPair{}, fault.Wrap(fault.Internal, "failed to generate tokens", err)
	}
	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// claimInputs resolves the permission list and scope embedded into a new
// access token.
func (s *Service) claimInputs(ctx context.Context, user *User) ([]string, Scope, error) {
	permissions, err := s.perms.UserPermissions(ctx, user.ID)
	if err != nil {
		return nil, Scope{}, fault.Wrap(fault.Internal, "failed to generate tokens", err)
	}
	if user.IsSuperUser {
		scope, err := s.scopes.ResolveAll(ctx)
		if err != nil {
			return nil, Scope{}, wrapScopeErr(err)
		}
		return permissions, scope, nil
	}
	if user.UnitID == nil {
		return nil, Scope{}, fault.New(fault.InvalidArgument, "user doesn't have unit")
	}
	scope, err := s.scopes.Resolve(ctx, *user.UnitID)
	if err != nil {
		return nil, Scope{}, wrapScopeErr(err)
	}
	return permissions, scope, nil
}

// wrapScopeErr keeps classified scope errors (missing unit) intact and
// funnels everything else into the generic token-generation failure.
func wrapScopeErr(err error) error {
	if fault.IsKind(err, fault.InvalidArgument) {
		return err
	}
	return fault.Wrap(fault.Internal, "failed to generate tokens", err)
}
