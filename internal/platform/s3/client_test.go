package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a path-style S3 endpoint keeping objects in memory.
type fakeStore struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]string
	creates int
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodHead && key == "":
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	case r.Method == http.MethodPut && key == "":
		f.creates++
		f.buckets[bucket] = true
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = string(body)
	default:
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func testClient(t *testing.T) (*Client, *fakeStore) {
	t.Helper()
	store := &fakeStore{buckets: map[string]bool{}, objects: map[string]string{}}
	server := httptest.NewServer(store)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
	})
	return &Client{s3: client, region: "us-east-1"}, store
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	c, err := NewClient("https://minio.lab:9000", "us-east-1", "ak", "sk")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", c.region)

	_, err = NewClient("", "eu-central-1", "", "")
	require.NoError(t, err)
}

func TestEnsureBucket(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, store := testClient(t)

	require.NoError(t, c.EnsureBucket(ctx, "runs"))
	require.NoError(t, c.EnsureBucket(ctx, "runs"))
	assert.Equal(t, 1, store.creates)
}

func TestUploadDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, store := testClient(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "hosts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "outcomes.yaml"), []byte("outcomes: []\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hosts", "cp1.log"), []byte("$ true [ok]\n"), 0o600))

	keys, err := c.UploadDir(ctx, "runs", "lab/20261019T120000-abc", dir)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{
		"lab/20261019T120000-abc/hosts/cp1.log",
		"lab/20261019T120000-abc/outcomes.yaml",
	}, keys)
	assert.Equal(t, "outcomes: []\n", store.objects["runs/lab/20261019T120000-abc/outcomes.yaml"])
}

func TestIsBucketAlreadyOwnedByYou(t *testing.T) {
	t.Parallel()

	assert.False(t, isBucketAlreadyOwnedByYou(nil))
	assert.False(t, isBucketAlreadyOwnedByYou(errors.New("boom")))
	assert.True(t, isBucketAlreadyOwnedByYou(&s3types.BucketAlreadyOwnedByYou{}))
	assert.True(t, isBucketAlreadyOwnedByYou(&smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}))
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.False(t, isNotFoundError(nil))
	assert.True(t, isNotFoundError(&s3types.NoSuchBucket{}))
	assert.True(t, isNotFoundError(&s3types.NotFound{}))
	assert.True(t, isNotFoundError(&smithy.GenericAPIError{Code: "404"}))
	assert.False(t, isNotFoundError(&smithy.GenericAPIError{Code: "AccessDenied"}))
}
