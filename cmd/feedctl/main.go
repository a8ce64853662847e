// Command feedctl posts files to a feed API and prints the feed from the terminal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"snapfeed/internal/apiclient"
	"snapfeed/internal/broker"
	"snapfeed/internal/identity"
	"snapfeed/internal/ingest"
	"snapfeed/internal/models"
	"snapfeed/internal/storage"

	"github.com/joho/godotenv"
)

const usage = `usage: feedctl <command> [flags]

commands:
  post [-caption text] [file ...]   upload files one by one, one post per file
  feed [-limit n] [-offset n]       print the feed with comment threads
  comment -post id [-parent id] text
`

func main() {
	_ = godotenv.Load()
	log.SetFlags(0)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "post":
		err = runPost(ctx, os.Args[2:])
	case "feed":
		err = runFeed(ctx, os.Args[2:])
	case "comment":
		err = runComment(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("feedctl: %v", err)
	}
}

func commonFlags(fs *flag.FlagSet) (api, token *string) {
	api = fs.String("api", envOr("SNAPFEED_API", "http://localhost:8375"), "feed API base URL")
	token = fs.String("token", os.Getenv("SNAPFEED_TOKEN"), "identity token (default $SNAPFEED_TOKEN)")
	return api, token
}

func runPost(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	api, token := commonFlags(fs)
	caption := fs.String("caption", "", "caption shared by every post")
	delay := fs.Duration("delay", ingest.DefaultDelay, "pause between files")
	uploadURL := fs.String("upload-url", envOr("CLOUDINARY_UPLOAD_URL", storage.DefaultCloudinaryURL), "object store upload API base")
	_ = fs.Parse(args)

	user, err := identity.Peek(*token)
	if err != nil {
		return models.NewUnauthenticatedError()
	}

	files := make([]models.UploadFile, 0, fs.NArg())
	for _, path := range fs.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		file := models.UploadFile{Name: filepath.Base(path), Content: content}
		file.ContentType = storage.ContentType(file)
		files = append(files, file)
	}

	tokens := identity.StaticToken(*token)
	pipeline := ingest.New(
		broker.NewClient(*api, nil),
		storage.NewCloudinary(*uploadURL, nil),
		apiclient.New(*api, tokens, nil),
		ingest.WithDelay(*delay),
	)

	result, err := pipeline.CreatePost(ctx, ingest.Request{
		User:    user,
		Tokens:  tokens,
		Files:   files,
		Caption: *caption,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d of %d files failed", len(result.Failures), len(files))
	}
	return nil
}

func runFeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	api, _ := commonFlags(fs)
	limit := fs.Int("limit", 20, "posts per page")
	offset := fs.Int("offset", 0, "posts to skip")
	_ = fs.Parse(args)

	items, err := apiclient.New(*api, nil, nil).ListFeed(ctx, *limit, *offset)
	if err != nil {
		return err
	}
	renderFeed(os.Stdout, items)
	return nil
}

func runComment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("comment", flag.ExitOnError)
	api, token := commonFlags(fs)
	postID := fs.String("post", "", "post to comment on")
	parent := fs.String("parent", "", "comment to reply to")
	_ = fs.Parse(args)

	if *postID == "" || fs.NArg() == 0 {
		return fmt.Errorf("comment needs -post and text")
	}
	var parentID *string
	if *parent != "" {
		parentID = parent
	}

	client := apiclient.New(*api, identity.StaticToken(*token), nil)
	comment, err := client.CreateComment(ctx, *postID, strings.Join(fs.Args(), " "), parentID)
	if err != nil {
		return err
	}
	fmt.Printf("comment %s added at %s\n", comment.ID, comment.CreatedAt.Format(time.RFC3339))
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
