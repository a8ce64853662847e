// Package seed provides helpers to create demo feed data. These helpers are
// intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"time"

	"snapfeed/internal/models"
	"snapfeed/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

// Distribution is the share of each post kind, in percent.
type Distribution struct {
	Text  int
	Image int
	Video int
}

var defaultDistribution = Distribution{Text: 40, Image: 50, Video: 10}

var sampleVideos = []string{
	"https://res.cloudinary.com/demo/video/upload/dog.mp4",
	"https://res.cloudinary.com/demo/video/upload/elephants.mp4",
	"https://res.cloudinary.com/demo/video/upload/sea_turtle.mp4",
}

// Factory builds feed entities and persists them through the repositories.
type Factory struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	faker    *gofakeit.Faker
	now      func() time.Time
	maxDays  int
}

// NewFactory creates a Factory. A zero seed draws one from the clock.
func NewFactory(posts repository.PostRepository, comments repository.CommentRepository, seed int64, maxDays int) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Factory{
		posts:    posts,
		comments: comments,
		faker:    gofakeit.New(seed),
		now:      time.Now,
		maxDays:  maxDays,
	}
}

// Identity builds a fake user.
func (f *Factory) Identity() *models.Identity {
	return &models.Identity{
		UserID:      f.faker.UUID(),
		DisplayName: f.faker.Name(),
		AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
}

// BuildPost constructs a post of the given kind without persisting it.
func (f *Factory) BuildPost(owner *models.Identity, kind models.ResourceKind) *models.Post {
	caption := f.faker.Sentence(f.faker.Number(3, 12))

	var post *models.Post
	switch kind {
	case models.ResourceImage:
		key := "user_" + owner.UserID + "/" + f.faker.UUID()
		post = models.NewMediaPost(owner, &models.StoredObject{
			SecureURL:        fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID()),
			ResourceKind:     models.ResourceImage,
			OriginalFilename: f.faker.Word(),
			Format:           "jpg",
			StorageKey:       key,
		}, "", caption)
	case models.ResourceVideo:
		post = models.NewMediaPost(owner, &models.StoredObject{
			SecureURL:        sampleVideos[f.faker.Number(0, len(sampleVideos)-1)],
			ResourceKind:     models.ResourceVideo,
			OriginalFilename: f.faker.Word(),
			Format:           "mp4",
			StorageKey:       "user_" + owner.UserID + "/" + f.faker.UUID(),
		}, "", caption)
	default:
		post = models.NewTextPost(owner, f.faker.Paragraph(1, 2, 8, " "))
	}

	post.CreatedAt = f.pastTime()
	return post
}

// CreatePost persists a post built by BuildPost.
func (f *Factory) CreatePost(ctx context.Context, owner *models.Identity, kind models.ResourceKind) (*models.Post, error) {
	post := f.BuildPost(owner, kind)
	if err := f.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment on post. A non-nil parent makes it a reply
// created after its parent.
func (f *Factory) CreateComment(ctx context.Context, author *models.Identity, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	after := post.CreatedAt
	comment := &models.Comment{
		PostID:          post.ID,
		AuthorID:        author.UserID,
		AuthorName:      author.DisplayName,
		AuthorAvatarURL: author.AvatarURL,
		Text:            f.faker.Sentence(f.faker.Number(2, 10)),
	}
	if parent != nil {
		pid := parent.ID
		comment.ParentID = &pid
		after = parent.CreatedAt
	}
	comment.CreatedAt = f.timeAfter(after)

	if err := f.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute
	return f.now().Add(-back).UTC()
}

func (f *Factory) timeAfter(t time.Time) time.Time {
	next := t.Add(time.Duration(f.faker.Number(1, 180)) * time.Minute)
	if now := f.now().UTC(); next.After(now) {
		return now
	}
	return next
}

// computeCounts splits total posts by d. Rounding leftovers go to text posts.
func computeCounts(total int, d Distribution) (text, image, video int) {
	sum := d.Text + d.Image + d.Video
	if total <= 0 || sum <= 0 {
		return 0, 0, 0
	}
	image = total * d.Image / sum
	video = total * d.Video / sum
	text = total - image - video
	return text, image, video
}
