// Package apiclient talks to a running feed API over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"snapfeed/internal/identity"
	"snapfeed/internal/models"
	"snapfeed/internal/service"
)

// Client calls the feed API. Writes authenticate with a token from tokens.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  identity.TokenSource
}

// New creates a Client for the API at baseURL. A nil httpClient gets a 30 second timeout.
func New(baseURL string, tokens identity.TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
	}
}

// WritePost records post through POST /api/posts and copies the stored ID and
// creation time back into it.
func (c *Client) WritePost(ctx context.Context, post *models.Post) error {
	if post == nil {
		return models.NewValidationError("post is required")
	}
	in := service.CommitPostInput{
		URL:          post.URL,
		ResourceType: string(post.ResourceKind),
		FileName:     post.FileName,
		Format:       post.Format,
		PublicID:     post.StorageKey,
		Caption:      post.Caption,
	}

	var stored models.Post
	if err := c.do(ctx, http.MethodPost, "/api/posts", in, true, &stored); err != nil {
		return err
	}
	post.ID = stored.ID
	post.CreatedAt = stored.CreatedAt
	post.OwnerID = stored.OwnerID
	post.OwnerName = stored.OwnerName
	post.ResourceKind = stored.ResourceKind
	post.Caption = stored.Caption
	return nil
}

// ListFeed returns one page of the hydrated feed.
func (c *Client) ListFeed(ctx context.Context, limit, offset int) ([]*models.FeedItem, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var items []*models.FeedItem
	if err := c.do(ctx, http.MethodGet, "/api/posts?"+q.Encode(), nil, false, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateComment adds a comment, or a reply when parentID is set.
func (c *Client) CreateComment(ctx context.Context, postID, text string, parentID *string) (*models.Comment, error) {
	body := map[string]any{"text": text}
	if parentID != nil {
		body["parent_id"] = *parentID
	}

	var comment models.Comment
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/comments", body, true, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, auth bool, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return models.NewInternalError(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return models.NewTransportError("API request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if c.tokens == nil {
			return models.NewUnauthenticatedError()
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return models.NewUnauthenticatedError()
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.NewTransportError("API request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return models.NewTransportError("API request", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return models.NewTransportError("API request", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// decodeError rebuilds the AppError the API reported.
func decodeError(status int, raw []byte) error {
	var payload models.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Code == "" {
		return models.NewTransportError("API request", fmt.Errorf("unexpected status %d", status))
	}
	return &models.AppError{Code: payload.Code, Message: payload.Error}
}
