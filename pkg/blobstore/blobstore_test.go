package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatientBlobName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 123_000_000, time.UTC)
	assert.Equal(t, "patient-abc-2024-03-09T14-05-07-123Z.json", PatientBlobName("abc", ts))

	name := PatientBlobName("a1b2", time.Now())
	assert.Regexp(t, regexp.MustCompile(`^patient-a1b2-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.json$`), name)
}

func TestPatientBlobName_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 3, 9, 16, 5, 7, 0, loc)
	assert.Equal(t, "patient-x-2024-03-09T14-05-07-000Z.json", PatientBlobName("x", ts))
}

func TestNew_SelectsProvider(t *testing.T) {
	ctx := context.Background()

	u, err := New(ctx, Config{Provider: "memory", Container: "c"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryUploader{}, u)

	u, err = New(ctx, Config{Container: "c"})
	require.NoError(t, err)
	assert.IsType(t, &AzureUploader{}, u)

	_, err = New(ctx, Config{Provider: "ftp"})
	assert.Error(t, err)
}

func TestMemoryUploader(t *testing.T) {
	m := NewMemoryUploader("patient-data")
	data := []byte(`{"id":"1"}`)

	url, err := m.Upload(context.Background(), Object{
		Name:        "patient-1.json",
		ContentType: "application/json",
		Data:        data,
		Metadata:    map[string]string{"patientId": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "memory://patient-data/patient-1.json", url)

	data[0] = 'X'
	obj, ok := m.Get("patient-1.json")
	require.True(t, ok)
	assert.Equal(t, `{"id":"1"}`, string(obj.Data))
	assert.Equal(t, "1", obj.Metadata["patientId"])

	_, err = m.Upload(context.Background(), Object{Name: " "})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestMemoryUploader_Concurrent(t *testing.T) {
	m := NewMemoryUploader("")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Upload(context.Background(), Object{Name: fmt.Sprintf("patient-%d.json", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, m.Len())
}

func TestMemoryUploader_Ping(t *testing.T) {
	m := NewMemoryUploader("c")
	assert.NoError(t, m.Ping(context.Background()))

	m.PingErr = errors.New("unreachable")
	assert.EqualError(t, m.Ping(context.Background()), "unreachable")
}

func TestAzureUploader_NotConfigured(t *testing.T) {
	u, err := NewAzureUploader(Config{Container: "patient-data"})
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), Object{Name: "x.json"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, u.Ping(context.Background()), ErrNotConfigured)
}

func TestAzureUploader_InvalidKey(t *testing.T) {
	u, err := NewAzureUploader(Config{AzureAccountName: "acct", AzureAccountKey: "not base64!"})
	require.NoError(t, err)
	assert.ErrorIs(t, u.Ping(context.Background()), ErrNotConfigured)
}

func TestS3Uploader_Upload(t *testing.T) {
	type captured struct {
		method, path, contentType, patientID string
		body                                 string
	}
	got := make(chan captured, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- captured{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			patientID:   r.Header.Get("X-Amz-Meta-PatientId"),
			body:        string(body),
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := NewS3Uploader(context.Background(), Config{
		Container:   "patients",
		S3Region:    "us-east-1",
		S3Endpoint:  srv.URL,
		S3AccessKey: "minio",
		S3SecretKey: "minio123",
	})
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), Object{
		Name:        "patient-1.json",
		ContentType: "application/json",
		Data:        []byte(`{"id":"1"}`),
		Metadata:    map[string]string{"patientId": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/patients/patient-1.json", url)

	req := <-got
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/patients/patient-1.json", req.path)
	assert.Equal(t, "application/json", req.contentType)
	assert.Equal(t, "1", req.patientID)
	assert.Contains(t, req.body, `{"id":"1"}`)
}

func TestS3Uploader_PingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	u, err := NewS3Uploader(context.Background(), Config{
		Container:   "patients",
		S3Endpoint:  srv.URL,
		S3AccessKey: "k",
		S3SecretKey: "s",
	})
	require.NoError(t, err)
	assert.Error(t, u.Ping(context.Background()))
}

func TestS3Uploader_NoBucket(t *testing.T) {
	u, err := NewS3Uploader(context.Background(), Config{})
	require.NoError(t, err)
	_, err = u.Upload(context.Background(), Object{Name: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestS3Uploader_ObjectURL(t *testing.T) {
	u := &S3Uploader{bucket: "b", region: "eu-west-1"}
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com/k.json", u.objectURL("k.json"))

	u.pathStyle = true
	assert.Equal(t, "https://s3.eu-west-1.amazonaws.com/b/k.json", u.objectURL("k.json"))
}
