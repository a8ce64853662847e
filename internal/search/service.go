package search

import (
	"context"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
)

// PostRecord is the indexed shape of a post.
type PostRecord struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	FileName  string `json:"fileName"`
	OwnerName string `json:"ownerName"`
	CreatedAt int64  `json:"createdAt"`
}

// RecordFromPost converts a post to its index document.
func RecordFromPost(p *models.Post) PostRecord {
	return PostRecord{
		ID:        p.ID,
		Caption:   p.Caption,
		FileName:  p.FileName,
		OwnerName: p.OwnerName,
		CreatedAt: p.CreatedAt.Unix(),
	}
}

// Index is the part of Meili the service depends on.
type Index interface {
	Healthy() bool
	IndexPost(doc PostRecord) error
	IndexPosts(docs []PostRecord) error
	Search(query string, limit, offset int) ([]string, error)
}

// PostStore is the fallback and hydration source for search results.
type PostStore interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
}

// Service tries the search index first and falls back to the post store.
type Service struct {
	index Index
	posts PostStore
}

// NewService creates a search service. index may be nil when Meilisearch is not configured.
func NewService(index Index, posts PostStore) *Service {
	return &Service{index: index, posts: posts}
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// Search returns posts whose caption or file name match query.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, error) {
	if s.indexReady() {
		ids, err := s.index.Search(query, limit, offset)
		if err == nil {
			return s.hydrate(ctx, ids), nil
		}
		middleware.Logger.WarnContext(ctx, "Search index error, falling back to store", "error", err)
	}

	posts, err := s.posts.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *Service) hydrate(ctx context.Context, ids []string) []*models.Post {
	out := make([]*models.Post, 0, len(ids))
	for _, id := range ids {
		p, err := s.posts.GetByID(ctx, id)
		if err != nil {
			// The index can briefly outlive or precede the store.
			continue
		}
		out = append(out, p)
	}
	return out
}

// IndexPost indexes a post (fire-and-forget to Meilisearch).
func (s *Service) IndexPost(p *models.Post) {
	if !s.indexReady() || p == nil {
		return
	}
	doc := RecordFromPost(p)
	go func() {
		if err := s.index.IndexPost(doc); err != nil {
			middleware.Logger.Warn("Index post failed", "post_id", doc.ID, "error", err)
		}
	}()
}

// Reindex pushes up to limit recent posts to the index.
func (s *Service) Reindex(ctx context.Context, limit int) error {
	if !s.indexReady() {
		return nil
	}
	posts, err := s.posts.List(ctx, limit, 0)
	if err != nil {
		return err
	}
	docs := make([]PostRecord, len(posts))
	for i, p := range posts {
		docs[i] = RecordFromPost(p)
	}
	return s.index.IndexPosts(docs)
}
