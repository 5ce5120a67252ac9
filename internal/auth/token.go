package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"garnizon.org/internal/fault"
	"garnizon.org/internal/obs"
)

const (
	tokenIssuer   = "garnizon-api"
	tokenAudience = "garnizon"

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the signed token payload. Refresh tokens always carry empty
// Permissions/ValidClassIDs/ValidUnitIDs: they authorize token renewal
// only, never resource access.
type Claims struct {
	UserID        int64    `json:"uid"`
	IsSuperUser   bool     `json:"is_super_user"`
	Status        string   `json:"status"`
	TokenType     string   `json:"token_type"`
	Permissions   []string `json:"permissions"`
	ValidClassIDs []int64  `json:"valid_class_ids"`
	ValidUnitIDs  []int64  `json:"valid_unit_ids"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies the service's access and refresh tokens
// with HS256 under a shared secret.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenIssuerOption configures a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) TokenIssuerOption {
	return func(i *TokenIssuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be positive")
	}
	issuer := &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// IssueAccess signs an access token embedding the user's identity,
// permission list and scope.
func (i *TokenIssuer) IssueAccess(user *User, permissions []string, scope Scope) (string, time.Time, error) {
	return i.sign(user, TokenTypeAccess, permissions, scope, i.accessTTL)
}

// IssueRefresh signs a refresh token carrying identity only.
func (i *TokenIssuer) IssueRefresh(user *User) (string, time.Time, error) {
	return i.sign(user, TokenTypeRefresh, []string{}, Scope{ClassIDs: []int64{}, UnitIDs: []int64{}}, i.refreshTTL)
}

func (i *TokenIssuer) sign(user *User, tokenType string, permissions []string, scope Scope, ttl time.Duration) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, errors.New("auth: user is required")
	}
	if permissions == nil {
		permissions = []string{}
	}
	if scope.ClassIDs == nil {
		scope.ClassIDs = []int64{}
	}
	if scope.UnitIDs == nil {
		scope.UnitIDs = []int64{}
	}
	now := i.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		UserID:        user.ID,
		IsSuperUser:   user.IsSuperUser,
		Status:        user.Status,
		TokenType:     tokenType,
		Permissions:   permissions,
		ValidClassIDs: scope.ClassIDs,
		ValidUnitIDs:  scope.UnitIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fault.Wrap(fault.Internal, "sign token", err)
	}
	return signed, exp, nil
}

// Verify validates signature, issuer, audience and expiry. Expired and
// malformed tokens are logged distinctly but both surface as
// Unauthenticated so clients cannot probe the difference.
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fault.New(fault.Unauthenticated, "invalid token")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			obs.Logger().WithField("reason", "expired").Debug("token rejected")
			return nil, fault.New(fault.Unauthenticated, "invalid token")
		case errors.Is(err, jwt.ErrTokenMalformed),
			errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable),
			errors.Is(err, jwt.ErrTokenInvalidClaims):
			obs.Logger().WithField("reason", "invalid").Debug("token rejected")
			return nil, fault.New(fault.Unauthenticated, "invalid token")
		default:
			return nil, fault.Wrap(fault.Internal, "token verification failed", err)
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fault.New(fault.Unauthenticated, "invalid token")
	}
	if claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh {
		return nil, fault.New(fault.Unauthenticated, "invalid token")
	}
	return claims, nil
}
