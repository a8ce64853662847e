package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/observability"
)

// DefaultCloudinaryURL is the public upload API base.
const DefaultCloudinaryURL = "https://api.cloudinary.com/v1_1"

const backendCloudinary = "cloudinary"

// Cloudinary uploads files with signed multipart requests.
type Cloudinary struct {
	baseURL string
	http    *http.Client
}

// NewCloudinary creates an uploader posting to baseURL/<cloud>/auto/upload.
func NewCloudinary(baseURL string, httpClient *http.Client) *Cloudinary {
	if baseURL == "" {
		baseURL = DefaultCloudinaryURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Cloudinary{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type cloudinaryResponse struct {
	models.StoredObject
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Upload implements Uploader. Only the ticket's public fields are sent.
func (c *Cloudinary) Upload(ctx context.Context, file models.UploadFile, ticket *models.UploadTicket) (*models.StoredObject, error) {
	start := time.Now()
	obj, err := c.upload(ctx, file, ticket)
	observability.UploadLatency.WithLabelValues(backendCloudinary).Observe(time.Since(start).Seconds())
	observability.ObjectUploads.WithLabelValues(backendCloudinary, observability.Outcome(models.ErrorCode(err), err)).Inc()
	return obj, err
}

func (c *Cloudinary) upload(ctx context.Context, file models.UploadFile, ticket *models.UploadTicket) (*models.StoredObject, error) {
	if ticket == nil || ticket.CloudName == "" {
		return nil, models.NewValidationError("upload ticket is required")
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fields := []struct{ k, v string }{
		{"api_key", ticket.APIKey},
		{"timestamp", strconv.FormatInt(ticket.Timestamp, 10)},
		{"signature", ticket.Signature},
		{"folder", ticket.Folder},
	}
	for _, f := range fields {
		if f.v == "" {
			continue
		}
		if err := mw.WriteField(f.k, f.v); err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := mw.Close(); err != nil {
		return nil, models.NewInternalError(err)
	}

	endpoint := fmt.Sprintf("%s/%s/auto/upload", c.baseURL, ticket.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, models.NewTransportError("object upload", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Object upload transport failure", "file", file.Name, "error", err)
		return nil, models.NewTransportError("object upload", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, models.NewTransportError("object upload", err)
	}

	var payload cloudinaryResponse
	_ = json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if payload.Error != nil && payload.Error.Message != "" {
			msg += ": " + payload.Error.Message
		}
		middleware.Logger.WarnContext(ctx, "Object upload transport failure", "file", file.Name, "status", resp.StatusCode)
		return nil, models.NewTransportError("object upload", fmt.Errorf("%s", msg))
	}

	if payload.SecureURL == "" {
		middleware.Logger.WarnContext(ctx, "Object store rejected upload", "file", file.Name)
		return nil, models.NewRemoteRejectedError("Upload failed: no secure URL returned")
	}

	obj := payload.StoredObject
	return &obj, nil
}
