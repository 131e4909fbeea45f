package patient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository/memory"
	"github.com/jwalitptl/intake-api/internal/service/submission"
	"github.com/jwalitptl/intake-api/pkg/blobstore"
)

type stubGenerator struct {
	payload model.PatientPayload
	err     error
}

func (s *stubGenerator) GeneratePatient(context.Context) (model.PatientPayload, error) {
	return s.payload, s.err
}

func (s *stubGenerator) ChatReply(context.Context, string, string) (string, error) {
	return "", nil
}

type stubUploader struct {
	url string
	err error
}

func (s *stubUploader) Upload(context.Context, blobstore.Object) (string, error) { return s.url, s.err }
func (s *stubUploader) Ping(context.Context) error                              { return nil }

func janeDoe() model.PatientPayload {
	return model.PatientPayload{
		"fullName":   "Jane Doe",
		"email":      "jane@example.com",
		"birthday":   "1990-01-01",
		"ssn":        "123-45-6789",
		"creditCard": "4111 1111 1111 1111",
		"expiryDate": "12/30",
		"cvv":        "123",
	}
}

func setupRouter(gen *stubGenerator, up *stubUploader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := submission.NewService(memory.NewStore(), gen, up, nil, nil, nil, submission.Config{})
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api"))
	return r
}

func post(r *gin.Engine) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/patients/generate-and-submit", nil))
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestGenerateAndSubmit_Success(t *testing.T) {
	r := setupRouter(&stubGenerator{payload: janeDoe()}, &stubUploader{url: "https://x/blob1"})

	w, body := post(r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://x/blob1", body["azureBlobUrl"])

	patient := body["patient"].(map[string]interface{})
	assert.Equal(t, "https://x/blob1", patient["azureBlobUrl"])
	assert.Equal(t, "Jane Doe", patient["fullName"])
	assert.NotEmpty(t, patient["id"])

	generated, _ := json.Marshal(body["generatedData"])
	expected, _ := json.Marshal(janeDoe())
	assert.JSONEq(t, string(expected), string(generated))
}

func TestGenerateAndSubmit_GenerationFailure(t *testing.T) {
	p := janeDoe()
	delete(p, "cvv")
	r := setupRouter(&stubGenerator{payload: p}, &stubUploader{url: "https://x"})

	w, body := post(r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "generation", body["stage"])
	assert.Equal(t, "Failed to generate and submit patient data: Failed to generate patient data: missing required field: cvv", body["error"])
	assert.NotContains(t, body, "patient")
}

func TestGenerateAndSubmit_UploadFailureReturnsPartialRecord(t *testing.T) {
	r := setupRouter(&stubGenerator{payload: janeDoe()}, &stubUploader{err: errors.New("AuthorizationFailure")})

	w, body := post(r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "upload", body["stage"])
	assert.Equal(t, "Failed to upload to Azure Blob Storage: AuthorizationFailure", body["error"])

	patient := body["patient"].(map[string]interface{})
	assert.NotEmpty(t, patient["id"])
	assert.Nil(t, patient["azureBlobUrl"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/patients/"+patient["id"].(string), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetPatient_NotFound(t *testing.T) {
	r := setupRouter(&stubGenerator{payload: janeDoe()}, &stubUploader{url: "https://x"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/patients/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"patient not found"}`, w.Body.String())
}
