package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/observability"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const backendMinio = "minio"

// ObjectPutter is the part of the MinIO client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioOptions configures an S3-compatible bucket.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL prefixes object URLs; defaults to the endpoint.
	PublicURL string
}

// Minio stores objects in an S3-compatible bucket. The ticket's folder is used as
// the key prefix; its signature was already checked by the broker that issued it.
type Minio struct {
	client    ObjectPutter
	bucket    string
	publicURL string
}

// NewMinio connects to the bucket, creating it when absent.
func NewMinio(ctx context.Context, opts MinioOptions) (*Minio, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
		middleware.Logger.Info("Created object bucket", "bucket", opts.Bucket)
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + opts.Endpoint
	}
	return NewMinioWithClient(client, opts.Bucket, publicURL), nil
}

// NewMinioWithClient wraps an existing client.
func NewMinioWithClient(client ObjectPutter, bucket, publicURL string) *Minio {
	return &Minio{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// Upload implements Uploader.
func (m *Minio) Upload(ctx context.Context, file models.UploadFile, ticket *models.UploadTicket) (*models.StoredObject, error) {
	start := time.Now()
	obj, err := m.upload(ctx, file, ticket)
	observability.UploadLatency.WithLabelValues(backendMinio).Observe(time.Since(start).Seconds())
	observability.ObjectUploads.WithLabelValues(backendMinio, observability.Outcome(models.ErrorCode(err), err)).Inc()
	return obj, err
}

func (m *Minio) upload(ctx context.Context, file models.UploadFile, ticket *models.UploadTicket) (*models.StoredObject, error) {
	if ticket == nil || ticket.Signature == "" {
		return nil, models.NewValidationError("upload ticket is required")
	}

	kind, format := Detect(file.Name, file.Content)
	ext := strings.ToLower(filepath.Ext(file.Name))
	id := uuid.NewString()
	key := path.Join(ticket.Folder, id+ext)

	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(file.Content), int64(len(file.Content)),
		minio.PutObjectOptions{ContentType: ContentType(file)})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Object upload transport failure", "file", file.Name, "error", err)
		return nil, models.NewTransportError("object upload", err)
	}
	if info.Key == "" {
		middleware.Logger.WarnContext(ctx, "Object store rejected upload", "file", file.Name)
		return nil, models.NewRemoteRejectedError("Upload failed: no object key returned")
	}

	return &models.StoredObject{
		SecureURL:        m.publicURL + "/" + m.bucket + "/" + info.Key,
		ResourceKind:     kind,
		OriginalFilename: strings.TrimSuffix(file.Name, filepath.Ext(file.Name)),
		Format:           format,
		StorageKey:       strings.TrimSuffix(info.Key, ext),
	}, nil
}
