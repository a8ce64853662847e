package repository

import (
	"context"

	"snapfeed/internal/models"
	"snapfeed/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations.
// Comments are always returned oldest first.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, postID, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	ListByPosts(ctx context.Context, postIDs []string) (map[string][]*models.Comment, error)
}

// commentRepository implements CommentRepository
type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return mapError(err, "Post", comment.PostID)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, postID, id string) (*models.Comment, error) {
	defer observability.TrackQuery("get", "comments")()
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND id = ?", postID, id).
		First(&comment).Error
	if err != nil {
		return nil, mapError(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	defer observability.TrackQuery("list", "comments")()
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListByPosts(ctx context.Context, postIDs []string) (map[string][]*models.Comment, error) {
	out := make(map[string][]*models.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	defer observability.TrackQuery("list_many", "comments")()
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id IN ?", postIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		out[c.PostID] = append(out[c.PostID], c)
	}
	return out, nil
}
