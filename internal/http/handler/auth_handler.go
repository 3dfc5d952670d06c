package handler

import (
	"net/http"

	"github.com/straye-as/travel-crm-api/internal/domain"
	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	userService       *service.UserService
	permissionService *service.PermissionService
	logger            *zap.Logger
}

func NewAuthHandler(userService *service.UserService, permissionService *service.PermissionService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService:       userService,
		permissionService: permissionService,
		logger:            logger,
	}
}

// Me godoc
// @Summary Get current authenticated user
// @Description Returns the caller with role and agency
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.MeDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.userService.Me(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "load current user")
		return
	}
	respondJSON(w, http.StatusOK, me)
}

// Permissions godoc
// @Summary Get the caller's capabilities
// @Description Lists capabilities granted by the caller's role and the ones limited to records the caller owns
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.PermissionsDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/permissions [get]
func (h *AuthHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.permissionService.Permissions(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "load permissions")
		return
	}
	respondJSON(w, http.StatusOK, permissions)
}

// ListUsers godoc
// @Summary List users of the agency
// @Tags Users
// @Produce json
// @Param lifecycle query string false "Lifecycle filter" Enums(active, archived, any)
// @Success 200 {array} domain.UserDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /users [get]
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context(), parseLifecycle(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list users")
		return
	}
	if users == nil {
		users = []domain.UserDTO{}
	}
	respondJSON(w, http.StatusOK, users)
}
