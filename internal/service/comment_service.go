package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"snapfeed/internal/cache"
	"snapfeed/internal/models"
)

const maxCommentLen = 2000

// CreateCommentInput is a new comment or reply on a post.
type CreateCommentInput struct {
	PostID   string
	Text     string
	ParentID *string
}

// CreateComment adds a comment authored by user. A reply's parent must be a
// comment on the same post.
func (s *PostService) CreateComment(ctx context.Context, user *models.Identity, in CreateCommentInput) (*models.Comment, error) {
	if user == nil || user.UserID == "" {
		return nil, models.NewUnauthenticatedError()
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewValidationError("Comment text is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 2000 characters)")
	}

	if _, err := s.getPost(ctx, in.PostID); err != nil {
		return nil, err
	}

	var parentID *string
	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) != "" {
		pid := strings.TrimSpace(*in.ParentID)
		if _, err := s.commentRepo.GetByID(ctx, in.PostID, pid); err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return nil, models.NewValidationError("Parent comment does not exist on this post")
			}
			return nil, err
		}
		parentID = &pid
	}

	comment := &models.Comment{
		PostID:          in.PostID,
		AuthorID:        user.UserID,
		AuthorName:      user.DisplayName,
		AuthorAvatarURL: user.AvatarURL,
		Text:            text,
		ParentID:        parentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = s.now()
	}

	cache.InvalidatePost(ctx, in.PostID)
	return comment, nil
}

// ListComments returns a post's comment forest, oldest roots first.
func (s *PostService) ListComments(ctx context.Context, postID string) ([]*models.CommentNode, error) {
	if _, err := s.getPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.forest(ctx, postID)
}
