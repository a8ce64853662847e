// Package service implements the feed's read and write operations over the repositories.
package service

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"snapfeed/internal/cache"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/repository"
	"snapfeed/internal/thread"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	maxCaptionLen   = 5000
)

// Searcher answers caption queries and keeps the search index current.
type Searcher interface {
	Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, error)
	IndexPost(post *models.Post)
}

type PostService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	search      Searcher
	http        *http.Client
	origins     *objectOrigins
	now         func() time.Time
}

// CommitPostInput is a stored-object descriptor (or just a caption) to record as a post.
type CommitPostInput struct {
	URL          string `json:"url"`
	ResourceType string `json:"resource_type"`
	FileName     string `json:"file_name"`
	Format       string `json:"format"`
	PublicID     string `json:"public_id"`
	Caption      string `json:"caption"`
}

func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	search Searcher,
	opts ...Option,
) *PostService {
	s := &PostService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		search:      search,
		origins:     &objectOrigins{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.http = &http.Client{Timeout: time.Minute, CheckRedirect: s.origins.checkRedirect}
	return s
}

// ClampPage applies the default and maximum page size.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// WritePost stores a new post. The store assigns ID and creation time; counters
// start at zero. Every cached feed page is invalidated so the writer sees it next read.
func (s *PostService) WritePost(ctx context.Context, post *models.Post) error {
	if post == nil || post.OwnerID == "" {
		return models.NewUnauthenticatedError()
	}

	post.Caption = strings.TrimSpace(post.Caption)
	if utf8.RuneCountInString(post.Caption) > maxCaptionLen {
		return models.NewValidationError("Caption too long (max 5000 characters)")
	}
	if post.URL == "" {
		if post.Caption == "" {
			return models.NewNothingToPostError()
		}
		post.ResourceKind = models.ResourceText
		post.FileName, post.Format, post.StorageKey = "", "", ""
	} else {
		post.ResourceKind = models.MediaKind(post.ResourceKind)
	}

	post.ID = ""
	post.CreatedAt = time.Time{}
	post.LikeCount = 0
	post.CommentCount = 0

	if err := s.postRepo.Create(ctx, post); err != nil {
		return err
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = s.now()
	}

	cache.InvalidateFeed(ctx)
	if s.search != nil {
		s.search.IndexPost(post)
	}
	middleware.Logger.InfoContext(ctx, "Post created", "post_id", post.ID, "resource_type", post.ResourceKind)
	return nil
}

// CommitPost records a post for an object the caller already uploaded.
func (s *PostService) CommitPost(ctx context.Context, user *models.Identity, in CommitPostInput) (*models.Post, error) {
	if user == nil || user.UserID == "" {
		return nil, models.NewUnauthenticatedError()
	}

	var post *models.Post
	if strings.TrimSpace(in.URL) == "" {
		post = models.NewTextPost(user, in.Caption)
	} else {
		u, err := url.Parse(strings.TrimSpace(in.URL))
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return nil, models.NewValidationError("url must be an absolute http(s) URL")
		}
		if !s.origins.trusted(u) {
			middleware.Logger.WarnContext(ctx, "Rejected commit for foreign object URL", "user_id", user.UserID, "host", u.Host)
			return nil, models.NewValidationError("url is not served by the configured object store")
		}
		post = models.NewMediaPost(user, &models.StoredObject{
			SecureURL:    u.String(),
			ResourceKind: models.ResourceKind(strings.ToLower(strings.TrimSpace(in.ResourceType))),
			Format:       strings.TrimSpace(in.Format),
			StorageKey:   strings.TrimSpace(in.PublicID),
		}, strings.TrimSpace(in.FileName), in.Caption)
	}

	if err := s.WritePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Reload drops cached feed pages after a batch so the next read is fresh.
func (s *PostService) Reload(ctx context.Context) {
	cache.InvalidateFeed(ctx)
}

// ListFeed returns posts newest first, each with its comment forest.
func (s *PostService) ListFeed(ctx context.Context, limit, offset int) ([]*models.FeedItem, error) {
	limit, offset = ClampPage(limit, offset)

	var items []*models.FeedItem
	err := cache.Aside(ctx, cache.FeedKey(ctx, limit, offset), &items, cache.FeedTTL, func() error {
		posts, err := s.postRepo.List(ctx, limit, offset)
		if err != nil {
			return err
		}
		items, err = s.hydrate(ctx, posts)
		return err
	})
	if err != nil {
		return nil, err
	}

	if items == nil {
		items = []*models.FeedItem{}
	}
	s.stampAges(items)
	return items, nil
}

// GetPost returns one post with its comment forest.
func (s *PostService) GetPost(ctx context.Context, id string) (*models.FeedItem, error) {
	post, err := s.getPost(ctx, id)
	if err != nil {
		return nil, err
	}
	forest, err := s.forest(ctx, id)
	if err != nil {
		return nil, err
	}
	item := &models.FeedItem{Post: *post, Comments: forest}
	s.stampAges([]*models.FeedItem{item})
	return item, nil
}

// SearchPosts finds posts by caption or file name.
func (s *PostService) SearchPosts(ctx context.Context, query string, limit, offset int) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	limit, offset = ClampPage(limit, offset)
	if s.search != nil {
		return s.search.Search(ctx, query, limit, offset)
	}
	posts, err := s.postRepo.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *PostService) getPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		p, err := s.postRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *PostService) hydrate(ctx context.Context, posts []*models.Post) ([]*models.FeedItem, error) {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	grouped, err := s.commentRepo.ListByPosts(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*models.FeedItem, len(posts))
	for i, p := range posts {
		items[i] = &models.FeedItem{Post: *p, Comments: thread.BuildForest(grouped[p.ID])}
	}
	return items, nil
}

func (s *PostService) forest(ctx context.Context, postID string) ([]*models.CommentNode, error) {
	var flat []*models.Comment
	err := cache.Aside(ctx, cache.CommentsKey(postID), &flat, cache.CommentsTTL, func() error {
		var err error
		flat, err = s.commentRepo.ListByPost(ctx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return thread.BuildForest(flat), nil
}

func (s *PostService) stampAges(items []*models.FeedItem) {
	now := s.now()
	for _, item := range items {
		if item == nil {
			continue
		}
		item.CreatedAgo = models.TimeAgo(item.CreatedAt, now)
		if item.Comments == nil {
			item.Comments = []*models.CommentNode{}
		}
	}
}
