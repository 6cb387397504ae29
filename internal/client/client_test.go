package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/api"
	"github.com/yourorg/vision-showcase/internal/client"
	"github.com/yourorg/vision-showcase/internal/documents"
	"github.com/yourorg/vision-showcase/internal/gallery"
	"github.com/yourorg/vision-showcase/internal/models"
	"github.com/yourorg/vision-showcase/internal/orchestrator"
	"github.com/yourorg/vision-showcase/internal/storage"
	"github.com/yourorg/vision-showcase/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// bucket is an in-memory object store accepting signed PUTs.
type bucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	status  int
}

func newBucket() *bucket {
	return &bucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *bucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != 0 {
		http.Error(w, "<Error><Code>AccessDenied</Code></Error>", b.status)
		return
	}
	if r.Method != http.MethodPut || r.URL.Query().Get("sig") != "w" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	body, _ := io.ReadAll(r.Body)
	key := strings.TrimPrefix(r.URL.Path, "/")
	b.objects[key] = body
	b.types[key] = r.Header.Get("Content-Type")
	w.WriteHeader(http.StatusOK)
}

func (b *bucket) object(key string) ([]byte, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[key], b.types[key]
}

type bucketSigner struct{ base string }

func (s bucketSigner) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (storage.SignedURL, error) {
	return storage.SignedURL{
		URL:     s.base + "/" + url.PathEscape(key) + "?sig=w",
		Method:  http.MethodPut,
		Expires: time.Now().Add(ttl),
		Headers: map[string]string{"Content-Type": contentType},
	}, nil
}

func (s bucketSigner) PresignGet(_ context.Context, key string, ttl time.Duration) (storage.SignedURL, error) {
	return storage.SignedURL{URL: s.base + "/" + url.PathEscape(key) + "?sig=r", Method: http.MethodGet}, nil
}

type stack struct {
	bucket *bucket
	store  documents.Store
	client *client.Client
}

func newStack(t *testing.T) stack {
	t.Helper()
	b := newBucket()
	bucketSrv := httptest.NewServer(b)
	t.Cleanup(bucketSrv.Close)

	store, err := documents.OpenBadger("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := gallery.New(bucketSigner{base: bucketSrv.URL}, store, gallery.DefaultConfig(), zap.NewNop())
	apiSrv := httptest.NewServer(api.NewRouter(api.NewHandler(svc, nil), nil, api.RouterOptions{}))
	t.Cleanup(apiSrv.Close)

	return stack{bucket: b, store: store, client: client.New(apiSrv.URL)}
}

func TestUploadCatEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	mock := clock.NewMock()

	var refreshed []types.ImageEntry
	o := orchestrator.New(s.client, orchestrator.Options{
		Clock: mock,
		OnSuccess: func(string) {
			var err error
			refreshed, err = s.client.Images(ctx)
			require.NoError(t, err)
		},
	})

	cat := orchestrator.BytesFile("cat.jpg", "image/jpeg", []byte("meow"))
	require.NoError(t, o.Start(ctx, cat))
	body, ct := s.bucket.object("cat.jpg")
	assert.Equal(t, []byte("meow"), body)
	assert.Equal(t, "image/jpeg", ct)

	mock.Add(3 * orchestrator.DefaultPollInterval)
	snap := o.Snapshot()
	assert.Equal(t, orchestrator.StateProcessing, snap.State)
	assert.Equal(t, 3, snap.Attempts)

	// the analysis pipeline writes its document
	require.NoError(t, s.store.Put(ctx, models.AnalysisDocument{
		FileName:           "cat.jpg",
		DetectedLabels:     []string{"Cat", "Mammal"},
		DominantColors:     []models.Color{{Red: 120, Green: 90, Blue: 60}},
		ProcessedTimestamp: time.Now(),
	}))

	mock.Add(orchestrator.DefaultPollInterval)
	assert.Equal(t, orchestrator.StateSuccess, o.Snapshot().State)

	require.Len(t, refreshed, 1)
	assert.Equal(t, "cat.jpg", refreshed[0].ID)
	assert.Equal(t, []string{"Cat", "Mammal"}, refreshed[0].DetectedLabels)
	assert.Contains(t, refreshed[0].ImageURL, "/cat.jpg?sig=r")

	mock.Add(orchestrator.DefaultSuccessDelay)
	assert.Equal(t, orchestrator.StateIdle, o.Snapshot().State)
}

func TestBucketRejectsPut(t *testing.T) {
	s := newStack(t)
	s.bucket.status = http.StatusForbidden
	o := orchestrator.New(s.client, orchestrator.Options{Clock: clock.NewMock()})

	err := o.Start(context.Background(), orchestrator.BytesFile("cat.jpg", "image/jpeg", []byte("meow")))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, orchestrator.StateError, o.Snapshot().State)
}

func TestRequestUploadURLValidation(t *testing.T) {
	s := newStack(t)
	_, err := s.client.RequestUploadURL(context.Background(), "cat.gif", "image/gif")

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid request", apiErr.Message)
	assert.Contains(t, apiErr.Details, "image/gif")
}

func TestStatusEscapesFilename(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	name := "summer & sea #1.png"

	st, err := s.client.Status(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, st)

	require.NoError(t, s.store.Put(ctx, models.AnalysisDocument{FileName: name, ProcessedTimestamp: time.Now()}))
	st, err = s.client.Status(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessed, st)
}

func TestImagesEmpty(t *testing.T) {
	s := newStack(t)
	got, err := s.client.Images(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := client.NewWithHTTPClient(srv.URL, &http.Client{Timeout: time.Second})
	_, err := c.Status(context.Background(), "cat.jpg")
	require.Error(t, err)
	var apiErr *client.APIError
	assert.False(t, errors.As(err, &apiErr))
}
