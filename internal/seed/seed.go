package seed

import (
	"context"
	"fmt"
	"log"

	"snapfeed/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers           int
	NumPosts           int
	MaxCommentsPerPost int
	MaxRepliesPerRoot  int
	Distribution       Distribution
}

// Summary reports what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Replies  int
}

// Seeder fills the feed with demo posts and comment threads.
type Seeder struct {
	factory *Factory
}

// NewSeeder creates a Seeder using f.
func NewSeeder(f *Factory) *Seeder {
	return &Seeder{factory: f}
}

// Run creates users, posts and threaded comments.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.NumUsers <= 0 {
		return nil, fmt.Errorf("at least one user is required")
	}
	dist := opts.Distribution
	if dist == (Distribution{}) {
		dist = defaultDistribution
	}

	users := make([]*models.Identity, opts.NumUsers)
	for i := range users {
		users[i] = s.factory.Identity()
	}
	summary := &Summary{Users: len(users)}

	text, image, video := computeCounts(opts.NumPosts, dist)
	kinds := make([]models.ResourceKind, 0, opts.NumPosts)
	for i := 0; i < text; i++ {
		kinds = append(kinds, models.ResourceText)
	}
	for i := 0; i < image; i++ {
		kinds = append(kinds, models.ResourceImage)
	}
	for i := 0; i < video; i++ {
		kinds = append(kinds, models.ResourceVideo)
	}

	f := s.factory
	for i, kind := range kinds {
		owner := users[i%len(users)]
		post, err := f.CreatePost(ctx, owner, kind)
		if err != nil {
			return summary, fmt.Errorf("create post: %w", err)
		}
		summary.Posts++

		roots := f.faker.Number(0, max(opts.MaxCommentsPerPost, 0))
		for r := 0; r < roots; r++ {
			root, err := f.CreateComment(ctx, users[f.faker.Number(0, len(users)-1)], post, nil)
			if err != nil {
				return summary, fmt.Errorf("create comment: %w", err)
			}
			summary.Comments++

			replies := f.faker.Number(0, max(opts.MaxRepliesPerRoot, 0))
			for k := 0; k < replies; k++ {
				if _, err := f.CreateComment(ctx, users[f.faker.Number(0, len(users)-1)], post, root); err != nil {
					return summary, fmt.Errorf("create reply: %w", err)
				}
				summary.Replies++
			}
		}
	}

	log.Printf("Seeded %d posts with %d comments and %d replies from %d users",
		summary.Posts, summary.Comments, summary.Replies, summary.Users)
	return summary, nil
}

// ClearAll removes every comment and post from a SQL store.
func ClearAll(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Post{}).Error
	})
}
