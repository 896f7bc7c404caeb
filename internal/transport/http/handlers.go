package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/core"
	"github.com/chatcore-io/chatcore-server/internal/store"
)

// Handlers bundles the REST endpoints for conversation management.
type Handlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewHandlers creates the REST handler set.
func NewHandlers(hub *core.Hub, logger *zerolog.Logger) *Handlers {
	return &Handlers{hub: hub, log: logger}
}

type createConversationRequest struct {
	PeerID string `json:"peer_id"`
}

type createGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

type changeAdminRequest struct {
	UserID string `json:"user_id"`
}

type conversationResponse struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Name           string   `json:"name,omitempty"`
	AdminID        string   `json:"admin_id,omitempty"`
	ParticipantIDs []string `json:"participant_ids"`
	LastMessage    string   `json:"last_message"`
	LastSenderName string   `json:"last_sender_name,omitempty"`
}

// CreateConversation starts a private conversation between the caller
// and one peer.
func (h *Handlers) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	callerID := c.GetString(ContextKeyUserID)
	conv, err := h.hub.Members().CreateConversation(c.Request.Context(), []string{callerID, req.PeerID})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toConversationResponse(conv))
}

// CreateGroup starts a group conversation with the caller as admin.
func (h *Handlers) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	callerID := c.GetString(ContextKeyUserID)
	conv, err := h.hub.Members().CreateGroup(c.Request.Context(), callerID, req.Name, req.MemberIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toConversationResponse(conv))
}

// AddMember adds a user to a group conversation.
func (h *Handlers) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	convID := c.Param("id")
	if err := h.hub.Members().AddParticipant(c.Request.Context(), convID, req.UserID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// KickMember removes a user from a group; only the group admin may do
// this.
func (h *Handlers) KickMember(c *gin.Context) {
	callerID := c.GetString(ContextKeyUserID)
	convID := c.Param("id")
	userID := c.Param("user_id")

	if err := h.hub.Members().KickMember(c.Request.Context(), convID, callerID, userID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LeaveGroup removes the caller from a group conversation.
func (h *Handlers) LeaveGroup(c *gin.Context) {
	callerID := c.GetString(ContextKeyUserID)
	convID := c.Param("id")

	if err := h.hub.Members().RemoveParticipant(c.Request.Context(), convID, callerID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangeAdmin transfers group admin rights to another member.
func (h *Handlers) ChangeAdmin(c *gin.Context) {
	var req changeAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	callerID := c.GetString(ContextKeyUserID)
	convID := c.Param("id")
	if err := h.hub.Members().ChangeAdmin(c.Request.Context(), convID, callerID, req.UserID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type messageResponse struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	SenderName     string          `json:"sender_name"`
	Content        string          `json:"content"`
	SentAt         time.Time       `json:"sent_at"`
	ReadStatus     map[string]bool `json:"read_status"`
}

// History returns the most recent messages of a conversation in
// chronological order.
func (h *Handlers) History(c *gin.Context) {
	callerID := c.GetString(ContextKeyUserID)
	convID := c.Param("id")

	limit := int64(50)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	msgs, err := h.hub.History(c.Request.Context(), convID, callerID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			SenderName:     m.SenderName,
			Content:        m.Content,
			SentAt:         m.SentAt,
			ReadStatus:     m.ReadStatus,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// OnlineStatus reports the online flag for a comma separated list of
// user ids.
func (h *Handlers) OnlineStatus(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "ids query parameter is required"})
		return
	}

	ids := strings.Split(raw, ",")
	statuses := h.hub.GetOnlineStatus(ids)
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	var coreErr *core.CoreError
	if !errors.As(err, &coreErr) {
		h.log.Error().Err(err).Msg("unexpected handler error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch coreErr.Code {
	case core.ErrCodeValidation:
		status = http.StatusBadRequest
	case core.ErrCodeNotFound:
		status = http.StatusNotFound
	case core.ErrCodeConflict:
		status = http.StatusConflict
	case core.ErrCodeForbidden:
		status = http.StatusForbidden
	}
	c.JSON(status, ErrorResponse{Error: coreErr.Message})
}

func toConversationResponse(conv *store.Conversation) conversationResponse {
	return conversationResponse{
		ID:             conv.ID,
		Type:           string(conv.Type),
		Name:           conv.Name,
		AdminID:        conv.AdminID,
		ParticipantIDs: conv.ParticipantIDs,
		LastMessage:    conv.LastMessage,
		LastSenderName: conv.LastSenderName,
	}
}
