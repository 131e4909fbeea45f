package blobstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/rs/zerolog/log"
)

// AzureUploader writes blobs into one Azure Blob Storage container using a
// shared key credential.
type AzureUploader struct {
	client    *container.Client
	container string
	// configErr is reported on every call when the client could not be built.
	configErr error

	mu      sync.Mutex
	created bool
}

// NewAzureUploader never fails on missing credentials. The returned uploader
// reports ErrNotConfigured when used instead.
func NewAzureUploader(cfg Config) (*AzureUploader, error) {
	name := cfg.Container
	if name == "" {
		name = "patient-data"
	}
	u := &AzureUploader{container: name}

	if cfg.AzureAccountName == "" || cfg.AzureAccountKey == "" {
		u.configErr = ErrNotConfigured
		return u, nil
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		u.configErr = fmt.Errorf("%w: %v", ErrNotConfigured, err)
		return u, nil
	}

	serviceURL := cfg.AzureServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccountName)
	}
	containerURL := strings.TrimRight(serviceURL, "/") + "/" + name

	client, err := container.NewClientWithSharedKeyCredential(containerURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create container client: %w", err)
	}
	u.client = client
	return u, nil
}

func (u *AzureUploader) Upload(ctx context.Context, obj Object) (string, error) {
	if u.configErr != nil {
		return "", u.configErr
	}
	if err := obj.validate(); err != nil {
		return "", err
	}

	u.ensureContainer(ctx)

	meta := make(map[string]*string, len(obj.Metadata))
	for k, v := range obj.Metadata {
		meta[k] = to.Ptr(v)
	}

	bb := u.client.NewBlockBlobClient(obj.Name)
	_, err := bb.UploadBuffer(ctx, obj.Data, &blockblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(obj.ContentType)},
		Metadata:    meta,
	})
	if err != nil {
		return "", fmt.Errorf("upload blob %s: %w", obj.Name, err)
	}
	return bb.URL(), nil
}

// Ping reads the container properties.
func (u *AzureUploader) Ping(ctx context.Context) error {
	if u.configErr != nil {
		return u.configErr
	}
	if _, err := u.client.GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("get container properties: %w", err)
	}
	return nil
}

// ensureContainer creates the container once. Failures are only logged: the
// upload that follows reports the real problem if there is one.
func (u *AzureUploader) ensureContainer(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.created {
		return
	}

	_, err := u.client.Create(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		log.Warn().Err(err).Str("container", u.container).Msg("Failed to create blob container")
		return
	}
	u.created = true
}
