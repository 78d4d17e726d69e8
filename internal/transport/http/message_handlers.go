package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pingline/pingline-server/internal/store"
)

// MessageHandlers provides HTTP handlers for conversation history.
type MessageHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store: st,
		log:   logger,
	}
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"text"`
	CreatedAt  string `json:"created_at"`
}

// History returns the full conversation between the caller and another user,
// both directions, ordered by timestamp ascending.
// GET /api/messages/:user_id
func (h *MessageHandlers) History(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	otherID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || otherID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	messages, err := h.store.ListConversation(c.Request.Context(), uid, otherID)
	if err != nil {
		h.log.Error().Err(err).
			Int64("user_id", uid).
			Int64("other_id", otherID).
			Msg("failed to load conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, MessageResponse{
			ID:         msg.ID,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			Text:       msg.Body,
			CreatedAt:  msg.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	c.JSON(http.StatusOK, response)
}
