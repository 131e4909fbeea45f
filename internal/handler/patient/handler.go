package patient

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/service/submission"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/httputil"
)

const submitErrorPrefix = "Failed to generate and submit patient data: "

// Service is the part of the submission orchestrator the handler needs.
type Service interface {
	Submit(ctx context.Context) (*submission.Result, error)
	Get(ctx context.Context, id string) (*model.PatientRecord, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("/generate-and-submit", h.GenerateAndSubmit)
		// Returns the stored record as is, including ssn, creditCard and
		// cvv in plaintext. There is no authentication in front of it.
		patients.GET("/:id", h.GetPatient)
	}
}

type submitResponse struct {
	Success       bool                 `json:"success"`
	Patient       *model.PatientRecord `json:"patient"`
	AzureBlobURL  string               `json:"azureBlobUrl"`
	GeneratedData model.PatientInput   `json:"generatedData"`
}

func (h *Handler) GenerateAndSubmit(c *gin.Context) {
	res, err := h.service.Submit(c.Request.Context())
	if err != nil {
		prefix := submitErrorPrefix
		var stageErr *apperrors.StageError
		if errors.As(err, &stageErr) && stageErr.Stage == apperrors.StageUpload {
			prefix = ""
		}

		status, body := httputil.NewErrorBody(err, prefix)
		var subErr *submission.Error
		if errors.As(err, &subErr) && subErr.PartialRecord != nil {
			body.Patient = subErr.PartialRecord
		}
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, body)
		return
	}

	httputil.RespondWithSuccess(c, submitResponse{
		Success:       true,
		Patient:       res.Record,
		AzureBlobURL:  res.RemoteURL,
		GeneratedData: res.Input,
	})
}

func (h *Handler) GetPatient(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err, "")
		return
	}
	httputil.RespondWithSuccess(c, rec)
}
