// Command main runs the feed seeder.
package main

import (
	"context"
	"flag"
	"log"

	"snapfeed/internal/config"
	"snapfeed/internal/database"
	"snapfeed/internal/firebaseapp"
	"snapfeed/internal/repository"
	"snapfeed/internal/search"
	"snapfeed/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 50, "Number of posts to create")
	maxComments := flag.Int("comments", 4, "Maximum root comments per post")
	maxReplies := flag.Int("replies", 3, "Maximum replies per root comment")
	days := flag.Int("days", 30, "Spread post times over this many days")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	shouldClean := flag.Bool("clean", false, "Clean SQL store before seeding")
	flag.Parse()

	_ = godotenv.Load()

	log.Println("🌱 Feed Seeder")
	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	var (
		posts    repository.PostRepository
		comments repository.CommentRepository
	)

	if cfg.StoreDriver == config.StoreFirestore {
		app, err := firebaseapp.New(ctx, firebaseapp.Options{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			log.Fatalf("Failed to initialize firebase: %v", err)
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			log.Fatalf("Failed to connect to firestore: %v", err)
		}
		defer func() { _ = client.Close() }()
		if *shouldClean {
			log.Println("Clean is only supported for SQL stores; skipping")
		}
		posts = repository.NewFirestorePostRepository(client)
		comments = repository.NewFirestoreCommentRepository(client)
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate: %v", err)
		}
		if *shouldClean {
			if err := seed.ClearAll(db); err != nil {
				log.Fatalf("❌ Cleanup failed: %v", err)
			}
		}
		posts = repository.NewPostRepository(db)
		comments = repository.NewCommentRepository(db)
	}

	s := seed.NewSeeder(seed.NewFactory(posts, comments, *randSeed, *days))
	summary, err := s.Run(ctx, seed.Options{
		NumUsers:           *numUsers,
		NumPosts:           *numPosts,
		MaxCommentsPerPost: *maxComments,
		MaxRepliesPerRoot:  *maxReplies,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	if cfg.MeiliURL != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		defer meili.Close()
		if err := search.NewService(meili, posts).Reindex(ctx, summary.Posts); err != nil {
			log.Printf("Search reindex failed: %v", err)
		} else if meili.Healthy() {
			log.Printf("🔎 Reindexed up to %d posts", summary.Posts)
		}
	}

	log.Printf("✨ All done! %d posts, %d comments, %d replies.", summary.Posts, summary.Comments, summary.Replies)
}
