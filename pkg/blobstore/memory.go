package blobstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryUploader keeps uploaded objects in process memory.
type MemoryUploader struct {
	mu        sync.RWMutex
	container string
	objects   map[string]Object
	// PingErr, when set, is returned by Ping.
	PingErr error
}

func NewMemoryUploader(container string) *MemoryUploader {
	if container == "" {
		container = "patient-data"
	}
	return &MemoryUploader{
		container: container,
		objects:   make(map[string]Object),
	}
}

func (m *MemoryUploader) Upload(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := obj.validate(); err != nil {
		return "", err
	}

	cp := Object{
		Name:        obj.Name,
		ContentType: obj.ContentType,
		Data:        append([]byte(nil), obj.Data...),
		Metadata:    make(map[string]string, len(obj.Metadata)),
	}
	for k, v := range obj.Metadata {
		cp.Metadata[k] = v
	}

	m.mu.Lock()
	m.objects[obj.Name] = cp
	m.mu.Unlock()

	return m.url(obj.Name), nil
}

func (m *MemoryUploader) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.PingErr
}

// Get returns a stored object by name.
func (m *MemoryUploader) Get(name string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[name]
	return obj, ok
}

// Len reports the number of stored objects.
func (m *MemoryUploader) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryUploader) url(name string) string {
	return fmt.Sprintf("memory://%s/%s", m.container, name)
}
