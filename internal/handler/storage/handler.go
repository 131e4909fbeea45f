package storage

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/service/storage"
	"github.com/jwalitptl/intake-api/pkg/httputil"
)

type Prober interface {
	Status(ctx context.Context) storage.Status
}

type Handler struct {
	prober Prober
}

func NewHandler(prober Prober) *Handler {
	return &Handler{prober: prober}
}

// RegisterRoutes keeps the historical /azure path whatever the provider is.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/azure/status", h.Status)
}

func (h *Handler) Status(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.prober.Status(c.Request.Context()))
}
