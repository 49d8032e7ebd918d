// Package devserver implements the backend REST contract over an in-memory
// repository. It backs the CLI's dev mode and the integration tests; it is
// not a production server.
package devserver

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	chat "nestchat/internal/domain/chat"
	"nestchat/internal/infra/auth"
	"nestchat/internal/infra/obs"
)

// Handler serves the chat REST API from a Repo.
type Handler struct {
	Repo   *Repo
	Logger *slog.Logger
}

// NewRouter builds a gin engine with all chat routes mounted.
func NewRouter(repo *Repo, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	h := Handler{Repo: repo, Logger: logger}
	mw := obs.Middleware{Logger: logger}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(mw.RequestID())
	router.Use(mw.RequestLogger())

	api := router.Group("/api/v1")
	api.Use(h.authenticate)
	{
		api.GET("/conversations", h.ListConversations)
		api.POST("/conversations", h.CreateConversation)
		api.GET("/conversations/:id", h.GetConversation)
		api.DELETE("/conversations/:id", h.DeleteConversation)
		api.GET("/conversations/:id/messages", h.ListMessages)
		api.POST("/conversations/:id/messages", h.SendMessage)
		api.POST("/conversations/:id/read", h.MarkRead)
		api.GET("/users/search", h.SearchUsers)
	}
	return router
}

// authenticate resolves the bearer token into a user. Tokens are parsed but
// not verified; this server trusts its callers by design of a dev tool.
// Unknown users are auto-registered so demos need no signup step.
func (h Handler) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	identity, err := auth.IdentityFromToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	user, found := h.Repo.User(identity.UserID)
	if !found {
		name := identity.Name
		if name == "" {
			name = identity.UserID
		}
		user = chat.User{ID: identity.UserID, Name: name, Online: true}
		h.Repo.UpsertUser(user)
	}
	c.Set("user", user)
	c.Next()
}

func currentUser(c *gin.Context) chat.User {
	return c.MustGet("user").(chat.User)
}

// ListConversations returns the caller's conversations, newest activity
// first, with messages embedded for unread counting.
func (h Handler) ListConversations(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, h.Repo.ListConversations(user.ID))
}

// GetConversation returns one conversation if the caller participates.
func (h Handler) GetConversation(c *gin.Context) {
	user := currentUser(c)
	conv, ok := h.Repo.Conversation(c.Param("id"))
	if !ok || !conv.HasParticipant(user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

// CreateConversation get-or-creates a thread with another participant,
// optionally anchored to a property.
func (h Handler) CreateConversation(c *gin.Context) {
	user := currentUser(c)
	var req struct {
		ParticipantID string `json:"participant_id"`
		PropertyID    string `json:"property_id"`
		PropertyTitle string `json:"property_title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)
	if req.ParticipantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant_id is required"})
		return
	}
	if req.ParticipantID == user.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start chat with yourself"})
		return
	}
	other, ok := h.Repo.User(req.ParticipantID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
		return
	}
	var property *chat.PropertyRef
	if req.PropertyID != "" {
		property = &chat.PropertyRef{ID: req.PropertyID, Title: req.PropertyTitle}
	}
	c.JSON(http.StatusOK, h.Repo.GetOrCreate(user, other, property))
}

// DeleteConversation removes a thread the caller participates in.
func (h Handler) DeleteConversation(c *gin.Context) {
	user := currentUser(c)
	id := c.Param("id")
	conv, ok := h.Repo.Conversation(id)
	if !ok || !conv.HasParticipant(user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	h.Repo.Delete(id)
	c.Status(http.StatusNoContent)
}

// ListMessages returns a conversation's messages in ascending order.
func (h Handler) ListMessages(c *gin.Context) {
	user := currentUser(c)
	id := c.Param("id")
	conv, ok := h.Repo.Conversation(id)
	if !ok || !conv.HasParticipant(user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	messages, _ := h.Repo.Messages(id)
	c.JSON(http.StatusOK, messages)
}

// SendMessage appends a message from the caller.
func (h Handler) SendMessage(c *gin.Context) {
	user := currentUser(c)
	id := c.Param("id")
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	conv, ok := h.Repo.Conversation(id)
	if !ok || !conv.HasParticipant(user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	msg, _ := h.Repo.AppendMessage(id, user, req.Content)
	c.JSON(http.StatusCreated, msg)
}

// MarkRead marks every message not sent by the caller as read.
func (h Handler) MarkRead(c *gin.Context) {
	user := currentUser(c)
	id := c.Param("id")
	conv, ok := h.Repo.Conversation(id)
	if !ok || !conv.HasParticipant(user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	h.Repo.MarkRead(id, user.ID)
	c.Status(http.StatusOK)
}

// SearchUsers matches registered users by name or id.
func (h Handler) SearchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	c.JSON(http.StatusOK, h.Repo.SearchUsers(query))
}
