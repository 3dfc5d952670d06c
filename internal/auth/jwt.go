package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/config"
	"github.com/straye-as/travel-crm-api/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidRole  = errors.New("token carries an unknown role")
)

// SessionClaims are the claims carried by a session token
type SessionClaims struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	AgencyID string `json:"agency_id"`
	jwt.RegisteredClaims
}

// TokenValidator validates HS256 session tokens issued by the login service
type TokenValidator struct {
	secret     []byte
	issuer     string
	cookieName string
}

// NewTokenValidator creates a new session token validator
func NewTokenValidator(cfg *config.AuthConfig) *TokenValidator {
	return &TokenValidator{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		cookieName: cfg.CookieName,
	}
}

// TokenFromRequest returns the session token from the Authorization header,
// falling back to the session cookie
func (v *TokenValidator) TokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", fmt.Errorf("%w: invalid authorization header format", ErrInvalidToken)
		}
		return strings.TrimSpace(parts[1]), nil
	}

	if v.cookieName != "" {
		if cookie, err := r.Cookie(v.cookieName); err == nil && cookie.Value != "" {
			return cookie.Value, nil
		}
	}

	return "", ErrMissingToken
}

// ValidateToken validates a session token and returns user context
func (v *TokenValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a valid id", ErrInvalidToken)
	}

	agencyID, err := uuid.Parse(claims.AgencyID)
	if err != nil {
		return nil, fmt.Errorf("%w: agency_id is not a valid id", ErrInvalidToken)
	}

	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return nil, ErrInvalidRole
	}

	return &UserContext{
		UserID:      userID,
		DisplayName: claims.Name,
		Email:       claims.Email,
		Role:        role,
		AgencyID:    agencyID,
	}, nil
}

// IssueToken signs a session token for user. The login service issues tokens in
// production; this is used by tooling and tests.
func (v *TokenValidator) IssueToken(user *UserContext, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Name:     user.DisplayName,
		Email:    user.Email,
		Role:     string(user.Role),
		AgencyID: user.AgencyID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
