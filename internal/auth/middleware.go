package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/config"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"go.uber.org/zap"
)

// UserLookup resolves the current state of an authenticated user.
// It lets role changes and deactivations take effect before the token expires.
type UserLookup interface {
	ActiveUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// Middleware handles authentication for HTTP requests
type Middleware struct {
	tokenValidator *TokenValidator
	apiKey         string
	apiKeyAgency   uuid.UUID
	users          UserLookup
	logger         *zap.Logger
}

// NewMiddleware creates a new authentication middleware. users may be nil, in
// which case the token claims are trusted as-is.
func NewMiddleware(cfg *config.AuthConfig, users UserLookup, logger *zap.Logger) *Middleware {
	agencyID, _ := uuid.Parse(cfg.APIKeyAgencyID)
	return &Middleware{
		tokenValidator: NewTokenValidator(cfg),
		apiKey:         cfg.APIKey,
		apiKeyAgency:   agencyID,
		users:          users,
		logger:         logger,
	}
}

// Authenticate is the main authentication middleware
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Try API key first
		if apiKey := r.Header.Get("x-api-key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			userCtx := &UserContext{
				UserID:      SystemUserID,
				DisplayName: "System",
				Email:       "system@travelcrm.local",
				Role:        domain.RoleDeveloper,
				AgencyID:    m.apiKeyAgency,
			}

			m.logger.Info("request authenticated",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("auth_type", "api_key"),
				zap.String("user_id", userCtx.UserID.String()),
				zap.Duration("auth_duration", time.Since(start)),
			)

			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
			return
		}

		token, err := m.tokenValidator.TokenFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}

		userCtx, err := m.tokenValidator.ValidateToken(token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			writeError(w, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}

		if m.users != nil {
			user, err := m.users.ActiveUser(r.Context(), userCtx.UserID)
			if err != nil {
				m.logger.Warn("authenticated user is not active",
					zap.String("user_id", userCtx.UserID.String()),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, "Unauthorized: user is not active")
				return
			}
			userCtx.Role = user.Role
			userCtx.AgencyID = user.AgencyID
			userCtx.DisplayName = user.DisplayName
			userCtx.Email = user.Email
		}

		m.logger.Info("request authenticated",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("auth_type", "jwt"),
			zap.String("user_id", userCtx.UserID.String()),
			zap.String("user_email", userCtx.Email),
			zap.String("role", string(userCtx.Role)),
			zap.Duration("auth_duration", time.Since(start)),
		)

		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

// RequireCapability middleware ensures the user's role holds capability.
// Ownership checks happen in the services, where the record is known.
func (m *Middleware) RequireCapability(capability domain.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusForbidden, "Forbidden: no user context")
				return
			}

			if !userCtx.Can(capability) {
				m.logger.Info("capability denied",
					zap.String("user_id", userCtx.UserID.String()),
					zap.String("role", string(userCtx.Role)),
					zap.String("capability", string(capability)),
				)
				writeError(w, http.StatusForbidden, "Forbidden: insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole middleware ensures the user ranks at or above role
func (m *Middleware) RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusForbidden, "Forbidden: no user context")
				return
			}

			if !userCtx.Role.AtLeast(role) {
				writeError(w, http.StatusForbidden, "Forbidden: insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{Error: message})
}
