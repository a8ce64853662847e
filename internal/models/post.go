// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResourceKind classifies what a post carries.
type ResourceKind string

const (
	ResourceImage ResourceKind = "image"
	ResourceVideo ResourceKind = "video"
	// ResourceRaw is what the object store reports for non-media files.
	ResourceRaw  ResourceKind = "raw"
	ResourceText ResourceKind = "text"
)

// MediaKind maps a reported kind onto one a stored object can carry.
// Anything other than image or video is stored as raw.
func MediaKind(kind ResourceKind) ResourceKind {
	switch kind {
	case ResourceImage, ResourceVideo:
		return kind
	default:
		return ResourceRaw
	}
}

// Post is one feed entry. A text post has no stored object.
type Post struct {
	ID             string       `gorm:"primaryKey;size:36" json:"id" firestore:"-"`
	OwnerID        string       `gorm:"size:128;not null;index" json:"owner_id" firestore:"ownerUid"`
	OwnerName      string       `gorm:"size:255" json:"owner_name" firestore:"ownerName"`
	OwnerAvatarURL string       `json:"owner_avatar_url" firestore:"ownerPhoto"`
	URL            string       `json:"url" firestore:"url"`
	ResourceKind   ResourceKind `gorm:"size:16;not null" json:"resource_type" firestore:"resource_type"`
	FileName       string       `json:"file_name" firestore:"fileName"`
	Format         string       `gorm:"size:32" json:"format" firestore:"format"`
	StorageKey     string       `json:"public_id" firestore:"public_id"`
	Caption        string       `gorm:"type:text" json:"caption" firestore:"caption"`
	CreatedAt      time.Time    `gorm:"index" json:"created_at" firestore:"createdAt,serverTimestamp"`
	LikeCount      int          `gorm:"not null;default:0" json:"likes" firestore:"likes"`
	CommentCount   int          `gorm:"not null;default:0" json:"comments_count" firestore:"commentsCount"`
}

// BeforeCreate assigns an ID when the caller left it empty.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsText reports whether the post has no stored object.
func (p *Post) IsText() bool {
	return p.URL == ""
}

// NewTextPost builds a caption-only post owned by the given identity.
func NewTextPost(owner *Identity, caption string) *Post {
	return &Post{
		OwnerID:        owner.UserID,
		OwnerName:      owner.DisplayName,
		OwnerAvatarURL: owner.AvatarURL,
		ResourceKind:   ResourceText,
		Caption:        caption,
	}
}

// NewMediaPost builds a post for an object the store has accepted.
func NewMediaPost(owner *Identity, obj *StoredObject, fallbackName, caption string) *Post {
	name := obj.OriginalFilename
	if name == "" {
		name = fallbackName
	}
	return &Post{
		OwnerID:        owner.UserID,
		OwnerName:      owner.DisplayName,
		OwnerAvatarURL: owner.AvatarURL,
		URL:            obj.SecureURL,
		ResourceKind:   MediaKind(obj.ResourceKind),
		FileName:       name,
		Format:         obj.Format,
		StorageKey:     obj.StorageKey,
		Caption:        caption,
	}
}
