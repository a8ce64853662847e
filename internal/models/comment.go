package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a flat comment record. ParentID is nil for root comments.
type Comment struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id" firestore:"-"`
	PostID          string    `gorm:"size:36;not null;index:idx_comments_post_created,priority:1" json:"post_id" firestore:"-"`
	AuthorID        string    `gorm:"size:128;not null" json:"author_id" firestore:"uid"`
	AuthorName      string    `gorm:"size:255" json:"author_name" firestore:"name"`
	AuthorAvatarURL string    `json:"author_avatar_url" firestore:"avatar"`
	Text            string    `gorm:"type:text;not null" json:"text" firestore:"text"`
	CreatedAt       time.Time `gorm:"index:idx_comments_post_created,priority:2" json:"created_at" firestore:"createdAt,serverTimestamp"`
	LikeCount       int       `gorm:"not null;default:0" json:"likes" firestore:"likes"`
	ParentID        *string   `gorm:"size:36;index" json:"parent_id" firestore:"parentId"`
}

// BeforeCreate assigns an ID when the caller left it empty.
func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsRoot reports whether the comment attaches directly to its post.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// CommentNode is a comment together with its ordered replies.
type CommentNode struct {
	Comment
	Replies []*CommentNode `json:"replies"`
}
