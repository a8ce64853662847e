package service

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
)

// Download is a post's stored object prepared for a browser download.
// Body is nil when the object could not be fetched; callers should redirect to URL.
type Download struct {
	Name        string
	URL         string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Download fetches the object behind a media post. Only URLs on a configured
// object-store origin are fetched; anything else is handed back for a redirect.
func (s *PostService) Download(ctx context.Context, id string) (*Download, error) {
	post, err := s.getPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.IsText() {
		return nil, models.NewNotFoundError("Post file", id)
	}

	d := &Download{Name: models.DownloadName(post), URL: post.URL}
	if u, err := url.Parse(post.URL); err != nil || !s.origins.trusted(u) {
		middleware.Logger.WarnContext(ctx, "Download URL outside object store, redirecting", "post_id", id)
		return d, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, post.URL, nil)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Download request invalid, redirecting", "post_id", id, "error", err)
		return d, nil
	}
	resp, err := s.http.Do(req)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Download fetch failed, redirecting", "post_id", id, "error", err)
		return d, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		middleware.Logger.WarnContext(ctx, "Download fetch failed, redirecting", "post_id", id, "status", resp.StatusCode)
		return d, nil
	}

	d.Body = resp.Body
	d.Size = resp.ContentLength
	d.ContentType = resp.Header.Get("Content-Type")
	if d.ContentType == "" {
		d.ContentType = "application/octet-stream"
	}
	return d, nil
}
