package chat

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/service/chat"
	"github.com/jwalitptl/intake-api/pkg/httputil"
)

const (
	contentRequired = "Message content is required"
	sendErrorPrefix = "Failed to process chat message: "
)

type Service interface {
	Send(ctx context.Context, content string) (*chat.Exchange, error)
	History(ctx context.Context) ([]*model.ChatMessage, error)
	Clear(ctx context.Context) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	c := r.Group("/chat")
	{
		c.GET("/messages", h.ListMessages)
		c.POST("/message", h.SendMessage)
		c.DELETE("/messages", h.ClearMessages)
	}
}

// sendRequest keeps content untyped so a non-string value can be told apart
// from a decoding failure.
type sendRequest struct {
	Content interface{} `json:"content"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, contentRequired)
		return
	}
	content, ok := req.Content.(string)
	if !ok {
		httputil.RespondWithMessage(c, http.StatusBadRequest, contentRequired)
		return
	}

	ex, err := h.service.Send(c.Request.Context(), content)
	if err != nil {
		httputil.RespondWithError(c, err, sendErrorPrefix)
		return
	}
	httputil.RespondWithSuccess(c, ex)
}

func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.service.History(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		httputil.RespondWithMessage(c, http.StatusInternalServerError, "Failed to fetch chat messages")
		return
	}
	httputil.RespondWithSuccess(c, msgs)
}

func (h *Handler) ClearMessages(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context()); err != nil {
		_ = c.Error(err)
		httputil.RespondWithMessage(c, http.StatusInternalServerError, "Failed to clear chat messages")
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"success": true})
}
