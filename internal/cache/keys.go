package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	feedVersionKey    = "feed:version"
	FeedKeyPrefix     = "feed:v%d:%d:%d"
	PostKeyPrefix     = "post:%s"
	CommentsKeyPrefix = "post:%s:comments"
)

const (
	FeedTTL     = 30 * time.Second
	PostTTL     = 5 * time.Minute
	CommentsTTL = 2 * time.Minute
)

// FeedKey returns the key for one feed page under the current feed version.
// Bumping the version on any write makes every cached page unreachable at once.
func FeedKey(ctx context.Context, limit, offset int) string {
	var version int64
	if client != nil {
		if v, err := client.Get(ctx, feedVersionKey).Int64(); err == nil {
			version = v
		}
	}
	return fmt.Sprintf(FeedKeyPrefix, version, limit, offset)
}

func PostKey(postID string) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func CommentsKey(postID string) string {
	return fmt.Sprintf(CommentsKeyPrefix, postID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateFeed drops every cached feed page.
func InvalidateFeed(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, feedVersionKey)
	}
}

// InvalidatePost drops a post, its comments and every feed page that may embed them.
func InvalidatePost(ctx context.Context, postID string) {
	Invalidate(ctx, PostKey(postID))
	Invalidate(ctx, CommentsKey(postID))
	InvalidateFeed(ctx)
}
