package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/middleware"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/models"
	appErrors "github.com/Cyb3rGhoul/dsa-brother-bot/pkg/errors"
	"github.com/Cyb3rGhoul/dsa-brother-bot/pkg/metrics"
	"github.com/Cyb3rGhoul/dsa-brother-bot/pkg/response"
)

const maxChatListLimit = 100

// ChatHandler manages persisted chat transcripts. Every operation is scoped
// to the authenticated owner; a chat belonging to someone else is
// indistinguishable from a missing one.
type ChatHandler struct {
	db *gorm.DB
}

func NewChatHandler(db *gorm.DB) (*ChatHandler, error) {
	if db == nil {
		return nil, errors.New("chat handler: db is required")
	}
	return &ChatHandler{db: db}, nil
}

type messageInput struct {
	ID        string    `json:"id"`
	Text      string    `json:"text" validate:"required,max=5000"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

type createChatRequest struct {
	Title    string         `json:"title" validate:"omitempty,max=100"`
	Messages []messageInput `json:"messages" validate:"omitempty,max=1000,dive"`
}

type updateChatRequest struct {
	Title      *string         `json:"title" validate:"omitempty,max=100"`
	IsArchived *bool           `json:"is_archived"`
	Messages   *[]messageInput `json:"messages" validate:"omitempty,max=1000,dive"`
}

// GET /api/chats?archived=false|true|all&limit=50
func (h *ChatHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "limit", 50)
	if limit <= 0 || limit > maxChatListLimit {
		limit = maxChatListLimit
	}

	query := h.db.Where("user_id = ?", user.ID).Order("updated_at DESC").Limit(limit)
	switch strings.ToLower(c.DefaultQuery("archived", "false")) {
	case "all":
		// no archive filter
	case "true":
		query = query.Where("is_archived = ?", true)
	default:
		query = query.Where("is_archived = ?", false)
	}

	var chats []models.Chat
	if err := query.Find(&chats).Error; err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	payload := make([]gin.H, 0, len(chats))
	for i := range chats {
		chat := &chats[i]
		payload = append(payload, gin.H{
			"id":           chat.ID,
			"title":        chat.Title,
			"messageCount": chat.MessageCount(),
			"lastMessage":  chat.LastMessage(),
			"isArchived":   chat.IsArchived,
			"createdAt":    chat.CreatedAt,
			"updatedAt":    chat.UpdatedAt,
		})
	}

	response.Success(c, http.StatusOK, "Chats retrieved successfully", gin.H{
		"chats": payload,
		"total": len(payload),
	})
}

// GET /api/chats/:id
func (h *ChatHandler) Get(c *gin.Context) {
	chat, ok := h.ownedChat(c)
	if !ok {
		return
	}

	response.Success(c, http.StatusOK, "Chat retrieved successfully", gin.H{"chat": chat})
}

// POST /api/chats
func (h *ChatHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createChatRequest
	if !bindAndValidate(c, &req) {
		return
	}

	chat := &models.Chat{
		UserID: user.ID,
		Title:  strings.TrimSpace(req.Title),
	}
	for _, msg := range req.Messages {
		chat.AppendMessage(models.ChatMessage{
			ID:        msg.ID,
			Text:      msg.Text,
			IsUser:    msg.IsUser,
			Timestamp: msg.Timestamp,
		})
	}

	if err := h.db.Create(chat).Error; err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusCreated, "Chat created successfully", gin.H{"chat": chat})
}

// PUT /api/chats/:id
func (h *ChatHandler) Update(c *gin.Context) {
	chat, ok := h.ownedChat(c)
	if !ok {
		return
	}

	var req updateChatRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			response.Error(c, appErrors.NewBadRequest("title cannot be empty"))
			return
		}
		chat.Title = title
	}
	if req.IsArchived != nil {
		chat.IsArchived = *req.IsArchived
	}
	if req.Messages != nil {
		chat.Messages = chat.Messages[:0]
		for _, msg := range *req.Messages {
			chat.AppendMessage(models.ChatMessage{
				ID:        msg.ID,
				Text:      msg.Text,
				IsUser:    msg.IsUser,
				Timestamp: msg.Timestamp,
			})
		}
	}

	if err := h.db.Save(chat).Error; err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, "Chat updated successfully", gin.H{"chat": chat})
}

// DELETE /api/chats/:id
func (h *ChatHandler) Delete(c *gin.Context) {
	chat, ok := h.ownedChat(c)
	if !ok {
		return
	}

	if err := h.db.Delete(chat).Error; err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, "Chat deleted successfully", nil)
}

// POST /api/chats/:id/messages
func (h *ChatHandler) AddMessage(c *gin.Context) {
	chat, ok := h.ownedChat(c)
	if !ok {
		return
	}

	var req messageInput
	if !bindAndValidate(c, &req) {
		return
	}

	if chat.MessageCount() >= models.MaxChatMessages {
		response.Error(c, appErrors.NewBadRequest("chat cannot have more messages"))
		return
	}

	chat.AppendMessage(models.ChatMessage{
		ID:        req.ID,
		Text:      req.Text,
		IsUser:    req.IsUser,
		Timestamp: req.Timestamp,
	})

	if err := h.db.Save(chat).Error; err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	author := "bot"
	if req.IsUser {
		author = "user"
	}
	metrics.ChatMessages.WithLabelValues(author).Inc()

	response.Success(c, http.StatusOK, "Message added successfully", gin.H{
		"chat":    gin.H{"id": chat.ID, "messageCount": chat.MessageCount()},
		"message": chat.LastMessage(),
	})
}

// POST /api/chats/:id/archive
func (h *ChatHandler) Archive(c *gin.Context) {
	h.setArchived(c, true, "Chat archived successfully")
}

// POST /api/chats/:id/unarchive
func (h *ChatHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false, "Chat unarchived successfully")
}

func (h *ChatHandler) setArchived(c *gin.Context, archived bool, message string) {
	chat, ok := h.ownedChat(c)
	if !ok {
		return
	}

	if err := h.db.Model(chat).Update("is_archived", archived).Error; err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	chat.IsArchived = archived

	response.Success(c, http.StatusOK, message, gin.H{"chat": chat})
}

// GET /api/chats/stats
func (h *ChatHandler) Stats(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var chats []models.Chat
	if err := h.db.Where("user_id = ?", user.ID).Find(&chats).Error; err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	var archived, messages int
	for i := range chats {
		if chats[i].IsArchived {
			archived++
		}
		messages += chats[i].MessageCount()
	}

	response.Success(c, http.StatusOK, "Chat statistics retrieved successfully", gin.H{
		"totalChats":    len(chats),
		"activeChats":   len(chats) - archived,
		"archivedChats": archived,
		"totalMessages": messages,
	})
}

// ownedChat loads the chat in :id scoped to the caller, writing the error
// response when absent or not owned.
func (h *ChatHandler) ownedChat(c *gin.Context) (*models.Chat, bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, appErrors.NewBadRequest("chat id is required"))
		return nil, false
	}

	var chat models.Chat
	err := h.db.Where("id = ? AND user_id = ?", id, user.ID).Take(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.Error(c, appErrors.New("CHAT_NOT_FOUND", "Chat not found", http.StatusNotFound))
		return nil, false
	}
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return nil, false
	}

	return &chat, true
}
