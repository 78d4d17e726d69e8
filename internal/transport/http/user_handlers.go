package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pingline/pingline-server/internal/core"
	"github.com/pingline/pingline-server/internal/store"
)

// UserHandlers provides HTTP handlers for user listing.
type UserHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// ListUsers returns every user except the caller, with live presence taken
// from the registry.
// GET /api/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.store.ListUsersExcept(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	registry := h.hub.Registry()
	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, UserResponse{
			ID:       u.ID,
			Username: u.Username,
			Online:   registry.Online(u.ID),
		})
	}

	c.JSON(http.StatusOK, response)
}
