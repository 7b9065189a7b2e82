package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/dnavault-client/internal/testutil"
)

// fakeObjects implements objectAPI in memory and records what it was asked.
type fakeObjects struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      string

	putErr         error
	putKey         string
	putContentType string
	putBody        []byte

	objects map[string][]byte
	getErr  error

	removeErr error
	removed   string

	statErr error
}

func (f *fakeObjects) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeObjects) MakeBucket(_ context.Context, bucket string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = bucket
	return f.makeBucketErr
}

func (f *fakeObjects) PutObject(_ context.Context, _ string, key string, r io.Reader, _ int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr != nil {
		return minioLib.UploadInfo{}, f.putErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return minioLib.UploadInfo{}, err
	}
	f.putKey, f.putContentType, f.putBody = key, opts.ContentType, body
	return minioLib.UploadInfo{Key: key, Size: int64(len(body))}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, _ string, key string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(bytes.NewReader(f.objects[key])), nil
}

func (f *fakeObjects) RemoveObject(_ context.Context, _ string, key string, _ minioLib.RemoveObjectOptions) error {
	f.removed = key
	return f.removeErr
}

func (f *fakeObjects) StatObject(_ context.Context, _ string, _ string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	return minioLib.ObjectInfo{}, f.statErr
}

func newTestClient(api *fakeObjects, prefix string) *Client {
	return &Client{api: api, bucket: "exports", prefix: prefix, logger: testutil.MakeNoopLogger()}
}

func TestNewClientWithAPI(t *testing.T) {
	ctx := context.Background()

	t.Run("bucket exists", func(t *testing.T) {
		api := &fakeObjects{bucketExists: true}
		c, err := NewClientWithAPI(ctx, api, "exports", "", testutil.MakeNoopLogger())
		require.NoError(t, err)
		assert.Equal(t, "exports", c.bucket)
		assert.Empty(t, api.madeBucket)
	})

	t.Run("creates missing bucket", func(t *testing.T) {
		api := &fakeObjects{}
		_, err := NewClientWithAPI(ctx, api, "exports", "", testutil.MakeNoopLogger())
		require.NoError(t, err)
		assert.Equal(t, "exports", api.madeBucket)
	})

	t.Run("existence check fails", func(t *testing.T) {
		api := &fakeObjects{bucketExistsErr: errors.New("unreachable")}
		c, err := NewClientWithAPI(ctx, api, "exports", "", testutil.MakeNoopLogger())
		assert.Nil(t, c)
		assert.ErrorContains(t, err, "failed to ensure bucket exists")
	})

	t.Run("creation fails", func(t *testing.T) {
		api := &fakeObjects{makeBucketErr: errors.New("denied")}
		c, err := NewClientWithAPI(ctx, api, "exports", "", testutil.MakeNoopLogger())
		assert.Nil(t, c)
		assert.ErrorContains(t, err, "failed to create bucket")
	})
}

func TestClient_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("prefixed key and content type", func(t *testing.T) {
		api := &fakeObjects{}
		c := newTestClient(api, "exports/")

		require.NoError(t, c.Upload(ctx, "/report.json", bytes.NewBufferString(`{"a":1}`)))
		assert.Equal(t, "exports/report.json", api.putKey)
		assert.Equal(t, "application/json", api.putContentType)
		assert.Equal(t, `{"a":1}`, string(api.putBody))
	})

	t.Run("unknown extension", func(t *testing.T) {
		api := &fakeObjects{}
		c := newTestClient(api, "")

		require.NoError(t, c.Upload(ctx, "f1", bytes.NewBufferString("ACGT")))
		assert.Equal(t, "f1", api.putKey)
		assert.Equal(t, defaultContentType, api.putContentType)
	})

	t.Run("error", func(t *testing.T) {
		c := newTestClient(&fakeObjects{putErr: errors.New("put-fail")}, "")
		err := c.Upload(ctx, "k", bytes.NewBufferString("data"))
		assert.ErrorContains(t, err, "failed to upload object")
	})
}

func TestClient_Download(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		api := &fakeObjects{objects: map[string][]byte{"exports/k": []byte("abc")}}
		c := newTestClient(api, "exports/")

		rc, err := c.Download(ctx, "k")
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})

	t.Run("error", func(t *testing.T) {
		c := newTestClient(&fakeObjects{getErr: errors.New("get-fail")}, "")
		rc, err := c.Download(ctx, "k")
		assert.Nil(t, rc)
		assert.ErrorContains(t, err, "failed to get object")
	})
}

func TestClient_Delete(t *testing.T) {
	ctx := context.Background()

	api := &fakeObjects{}
	c := newTestClient(api, "exports/")
	require.NoError(t, c.Delete(ctx, "k"))
	assert.Equal(t, "exports/k", api.removed)

	c = newTestClient(&fakeObjects{removeErr: errors.New("remove-fail")}, "")
	assert.ErrorContains(t, c.Delete(ctx, "k"), "failed to delete object")
}

func TestClient_Exists(t *testing.T) {
	ctx := context.Background()

	t.Run("exists", func(t *testing.T) {
		ok, err := newTestClient(&fakeObjects{}, "").Exists(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("not found", func(t *testing.T) {
		ok, err := newTestClient(&fakeObjects{statErr: minioLib.ErrorResponse{Code: "NoSuchKey"}}, "").Exists(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other error", func(t *testing.T) {
		ok, err := newTestClient(&fakeObjects{statErr: errors.New("stat-fail")}, "").Exists(ctx, "k")
		assert.False(t, ok)
		assert.ErrorContains(t, err, "failed to stat object")
	})
}
