package api

import (
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hkaraki/herfa/internal/middleware"
	"github.com/hkaraki/herfa/internal/models"
	"github.com/hkaraki/herfa/internal/repository"
)

// MessageHandler serves conversations and messages. Participation is
// checked through ConversationRepository.GetForParticipant, which folds
// the membership test into the lookup itself.
type MessageHandler struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	logger        *zap.Logger
}

func NewMessageHandler(
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		users:         users,
		conversations: conversations,
		messages:      messages,
		logger:        logger,
	}
}

type createConversationRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

// CreateConversation handles POST /api/messages/conversation
// Find-or-create for the unordered pair (caller, participant). Repeated
// calls return the same conversation id.
func (h *MessageHandler) CreateConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "participantId is required")
		return
	}
	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid participant ID format")
		return
	}
	if participantID == userID {
		fail(c, http.StatusBadRequest, "Cannot start a conversation with yourself")
		return
	}

	participant, err := h.users.GetByID(c.Request.Context(), participantID)
	if err != nil {
		h.logger.Error("failed to load participant", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}
	if participant == nil {
		fail(c, http.StatusNotFound, "Participant not found")
		return
	}

	conv, created, err := h.conversations.FindOrCreate(c.Request.Context(), userID, participantID)
	if err != nil {
		h.logger.Error("failed to find or create conversation", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success":        true,
		"conversationId": conv.ID,
		"isNew":          created,
	})
}

// ListConversations handles GET /api/messages/conversations
func (h *MessageHandler) ListConversations(c *gin.Context) {
	conversations, err := h.conversations.ListForParticipant(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"conversations": conversations,
		"count":         len(conversations),
	})
}

// GetMessages handles GET /api/messages/conversation/:id
// Returns the history oldest first. Opening a conversation acknowledges
// it: the caller's unread messages are flipped and their counter zeroed
// before the list is read back.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid conversation ID format")
		return
	}

	conv, err := h.conversations.GetForParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		h.logger.Error("failed to load conversation", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	if conv == nil {
		fail(c, http.StatusNotFound, "Conversation not found")
		return
	}

	if _, err := h.conversations.MarkRead(c.Request.Context(), conv.ID, userID); err != nil {
		h.logger.Error("failed to mark conversation read", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	messages, err := h.messages.ListByConversation(c.Request.Context(), conv.ID)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": messages,
		"count":    len(messages),
	})
}

// MarkConversationRead handles PATCH /api/messages/conversation/:id/read
// Read-acknowledgement without fetching the history.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid conversation ID format")
		return
	}

	conv, err := h.conversations.GetForParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		h.logger.Error("failed to load conversation", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to mark conversation read")
		return
	}
	if conv == nil {
		fail(c, http.StatusNotFound, "Conversation not found")
		return
	}

	flipped, err := h.conversations.MarkRead(c.Request.Context(), conv.ID, userID)
	if err != nil {
		h.logger.Error("failed to mark conversation read", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to mark conversation read")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"markedRead": flipped,
	})
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	Message        string `json:"message" binding:"required"`
}

// SendMessage handles POST /api/messages
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "conversationId and message are required")
		return
	}
	// Counted in runes to match the char_length CHECK on the column.
	if utf8.RuneCountInString(req.Message) > models.MaxMessageLength {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Message exceeds %d characters", models.MaxMessageLength))
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid conversation ID format")
		return
	}

	conv, err := h.conversations.GetForParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		h.logger.Error("failed to load conversation", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to send message")
		return
	}
	if conv == nil {
		fail(c, http.StatusNotFound, "Conversation not found")
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), conv, userID, req.Message)
	if err != nil {
		h.logger.Error("failed to send message", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": msg,
	})
}

// MarkMessageRead handles PATCH /api/messages/:id/read
// Flips a single message addressed to the caller. Already-read messages
// are returned unchanged.
func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	userID := middleware.GetUserID(c)

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid message ID format")
		return
	}

	msg, err := h.messages.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		h.logger.Error("failed to mark message read", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to mark message as read")
		return
	}
	if msg == nil {
		fail(c, http.StatusNotFound, "Message not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": msg,
	})
}
