package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"snapfeed/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testTicket() *models.UploadTicket {
	return &models.UploadTicket{Timestamp: 1700000000, Signature: "sig", APIKey: "key", CloudName: "demo", Folder: "user_u1"}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	kind, format := Detect("photo.PNG", pngBytes(t))
	assert.Equal(t, models.ResourceImage, kind)
	assert.Equal(t, "png", format)

	kind, format = Detect("clip.webm", []byte("\x1A\x45\xDF\xA3 rest of the stream"))
	assert.Equal(t, models.ResourceVideo, kind)
	assert.Equal(t, "webm", format)

	kind, format = Detect("movie.MOV", []byte("not really a movie"))
	assert.Equal(t, models.ResourceVideo, kind)
	assert.Equal(t, "mov", format)

	kind, format = Detect("notes.pdf", []byte("%PDF-1.4"))
	assert.Equal(t, models.ResourceRaw, kind)
	assert.Equal(t, "pdf", format)

	kind, format = Detect("README", []byte("hello"))
	assert.Equal(t, models.ResourceRaw, kind)
	assert.Empty(t, format)
}

func TestContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", ContentType(models.UploadFile{ContentType: "image/jpeg"}))
	assert.Equal(t, "image/png", ContentType(models.UploadFile{ContentType: "application/octet-stream", Content: pngBytes(t)}))
}

func TestCloudinary_Upload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/auto/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.Equal(t, "1700000000", r.FormValue("timestamp"))
		assert.Equal(t, "sig", r.FormValue("signature"))
		assert.Equal(t, "user_u1", r.FormValue("folder"))
		assert.Empty(t, r.FormValue("api_secret"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "cat.png", hdr.Filename)
		assert.Equal(t, []byte("pixels"), content)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"secure_url":        "https://res.example.com/demo/image/upload/v1/user_u1/cat.png",
			"resource_type":     "image",
			"original_filename": "cat",
			"format":            "png",
			"public_id":         "user_u1/cat",
		})
	}))
	defer srv.Close()

	obj, err := NewCloudinary(srv.URL, nil).Upload(context.Background(),
		models.UploadFile{Name: "cat.png", Content: []byte("pixels")}, testTicket())
	require.NoError(t, err)
	assert.Equal(t, &models.StoredObject{
		SecureURL:        "https://res.example.com/demo/image/upload/v1/user_u1/cat.png",
		ResourceKind:     models.ResourceImage,
		OriginalFilename: "cat",
		Format:           "png",
		StorageKey:       "user_u1/cat",
	}, obj)
}

func TestCloudinary_UploadFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{"rejected with status", http.StatusBadRequest, `{"error":{"message":"Invalid Signature"}}`, models.CodeTransport},
		{"server error", http.StatusInternalServerError, `oops`, models.CodeTransport},
		{"no secure url", http.StatusOK, `{"public_id":"x"}`, models.CodeRemoteRejected},
		{"empty body", http.StatusOK, ``, models.CodeRemoteRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			obj, err := NewCloudinary(srv.URL, nil).Upload(context.Background(),
				models.UploadFile{Name: "a.bin", Content: []byte("x")}, testTicket())
			assert.Nil(t, obj)
			assert.True(t, models.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestCloudinary_NetworkFailureAndMissingTicket(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	up := NewCloudinary(url, nil)
	_, err := up.Upload(context.Background(), models.UploadFile{Name: "a"}, testTicket())
	assert.True(t, models.HasCode(err, models.CodeTransport))

	_, err = up.Upload(context.Background(), models.UploadFile{Name: "a"}, nil)
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

type fakePutter struct {
	bucket, key, contentType string
	size                     int64
	info                     minio.UploadInfo
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, _ io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.bucket, f.key, f.size, f.contentType = bucket, key, size, opts.ContentType
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	info := f.info
	if info.Key == "" {
		info.Key = key
	}
	return info, nil
}

func TestMinio_Upload(t *testing.T) {
	t.Parallel()

	content := pngBytes(t)
	putter := &fakePutter{}
	up := NewMinioWithClient(putter, "snapfeed", "http://localhost:9000/")

	obj, err := up.Upload(context.Background(), models.UploadFile{Name: "Cat.PNG", Content: content}, testTicket())
	require.NoError(t, err)

	assert.Equal(t, "snapfeed", putter.bucket)
	assert.Regexp(t, `^user_u1/[0-9a-f-]{36}\.png$`, putter.key)
	assert.Equal(t, int64(len(content)), putter.size)
	assert.Equal(t, "image/png", putter.contentType)

	assert.Equal(t, "http://localhost:9000/snapfeed/"+putter.key, obj.SecureURL)
	assert.Equal(t, models.ResourceImage, obj.ResourceKind)
	assert.Equal(t, "Cat", obj.OriginalFilename)
	assert.Equal(t, "png", obj.Format)
	assert.NotContains(t, obj.StorageKey, ".png")
}

func TestMinio_UploadFailures(t *testing.T) {
	t.Parallel()

	up := NewMinioWithClient(&fakePutter{err: errors.New("connection refused")}, "b", "http://x")
	_, err := up.Upload(context.Background(), models.UploadFile{Name: "a.txt", Content: []byte("a")}, testTicket())
	assert.True(t, models.HasCode(err, models.CodeTransport))

	_, err = up.Upload(context.Background(), models.UploadFile{Name: "a.txt"}, &models.UploadTicket{})
	assert.True(t, models.HasCode(err, models.CodeValidation))
}
