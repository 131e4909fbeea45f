// Package blobstore uploads named objects to a remote blob container and
// reports the URL they can be fetched from. Azure Blob Storage, S3 compatible
// stores and an in-memory container are supported.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned when the provider credentials are missing.
	// The uploader is still constructed so the process can start.
	ErrNotConfigured = errors.New("blob storage credentials not configured")
	ErrEmptyName     = errors.New("blob name is required")
)

// Object is a single blob to upload.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
	Metadata    map[string]string
}

func (o Object) validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Uploader persists objects in a remote container.
type Uploader interface {
	// Upload stores obj and returns its URL. Names are never reused so an
	// existing blob is simply overwritten.
	Upload(ctx context.Context, obj Object) (string, error)
	// Ping checks that the container is reachable with the configured
	// credentials.
	Ping(ctx context.Context) error
}

// Provider names accepted by New.
const (
	ProviderAzure  = "azure"
	ProviderS3     = "s3"
	ProviderMemory = "memory"
)

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Container string

	AzureAccountName string
	AzureAccountKey  string
	// AzureServiceURL overrides https://<account>.blob.core.windows.net/.
	AzureServiceURL string

	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// New builds the uploader named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Uploader, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderAzure:
		return NewAzureUploader(cfg)
	case ProviderS3:
		return NewS3Uploader(ctx, cfg)
	case ProviderMemory:
		return NewMemoryUploader(cfg.Container), nil
	default:
		return nil, fmt.Errorf("unknown blob provider %q", cfg.Provider)
	}
}

// PatientBlobName names the snapshot of a patient record uploaded at t, e.g.
// patient-<id>-2024-01-02T03-04-05-678Z.json.
func PatientBlobName(patientID string, t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return fmt.Sprintf("patient-%s-%s.json", patientID, ts)
}
