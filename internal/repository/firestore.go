package repository

import (
	"context"
	"strings"

	"snapfeed/internal/models"
	"snapfeed/internal/observability"

	"cloud.google.com/go/firestore"
)

const (
	uploadsCollection  = "uploads"
	commentsCollection = "comments"

	// firestoreSearchWindow bounds how many recent posts a caption search scans.
	firestoreSearchWindow = 500
)

// firestorePostRepository stores posts as uploads/{id} documents.
type firestorePostRepository struct {
	client *firestore.Client
}

// NewFirestorePostRepository creates a post repository backed by Firestore.
func NewFirestorePostRepository(client *firestore.Client) PostRepository {
	return &firestorePostRepository{client: client}
}

func (r *firestorePostRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", uploadsCollection)()
	ref := r.client.Collection(uploadsCollection).NewDoc()
	if _, err := ref.Create(ctx, post); err != nil {
		return err
	}
	post.ID = ref.ID

	// Read back the server-assigned timestamp.
	snap, err := ref.Get(ctx)
	if err != nil {
		return err
	}
	var stored models.Post
	if err := snap.DataTo(&stored); err != nil {
		return err
	}
	post.CreatedAt = stored.CreatedAt
	return nil
}

func (r *firestorePostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackQuery("get", uploadsCollection)()
	snap, err := r.client.Collection(uploadsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapError(err, "Post", id)
	}
	return decodePost(snap)
}

func (r *firestorePostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	defer observability.TrackQuery("list", uploadsCollection)()
	q := r.client.Collection(uploadsCollection).
		OrderBy("createdAt", firestore.Desc).
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.collect(ctx, q)
}

// Search scans the most recent posts; Firestore has no substring matching.
func (r *firestorePostRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, error) {
	defer observability.TrackQuery("search", uploadsCollection)()
	recent, err := r.collect(ctx, r.client.Collection(uploadsCollection).
		OrderBy("createdAt", firestore.Desc).
		Limit(firestoreSearchWindow))
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matched []*models.Post
	for _, p := range recent {
		if strings.Contains(strings.ToLower(p.Caption), needle) || strings.Contains(strings.ToLower(p.FileName), needle) {
			matched = append(matched, p)
		}
	}
	return page(matched, limit, offset), nil
}

func (r *firestorePostRepository) collect(ctx context.Context, q firestore.Query) ([]*models.Post, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	posts := make([]*models.Post, 0, len(snaps))
	for _, snap := range snaps {
		p, err := decodePost(snap)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func decodePost(snap *firestore.DocumentSnapshot) (*models.Post, error) {
	var p models.Post
	if err := snap.DataTo(&p); err != nil {
		return nil, err
	}
	p.ID = snap.Ref.ID
	if p.ResourceKind == "" && p.URL == "" {
		p.ResourceKind = models.ResourceText
	}
	return &p, nil
}

// firestoreCommentRepository stores comments under uploads/{postId}/comments/{id}.
type firestoreCommentRepository struct {
	client *firestore.Client
}

// NewFirestoreCommentRepository creates a comment repository backed by Firestore.
func NewFirestoreCommentRepository(client *firestore.Client) CommentRepository {
	return &firestoreCommentRepository{client: client}
}

func (r *firestoreCommentRepository) comments(postID string) *firestore.CollectionRef {
	return r.client.Collection(uploadsCollection).Doc(postID).Collection(commentsCollection)
}

func (r *firestoreCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", commentsCollection)()
	ref := r.comments(comment.PostID).NewDoc()
	if _, err := ref.Create(ctx, comment); err != nil {
		return mapError(err, "Post", comment.PostID)
	}
	comment.ID = ref.ID

	snap, err := ref.Get(ctx)
	if err != nil {
		return err
	}
	var stored models.Comment
	if err := snap.DataTo(&stored); err != nil {
		return err
	}
	comment.CreatedAt = stored.CreatedAt
	return nil
}

func (r *firestoreCommentRepository) GetByID(ctx context.Context, postID, id string) (*models.Comment, error) {
	defer observability.TrackQuery("get", commentsCollection)()
	snap, err := r.comments(postID).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapError(err, "Comment", id)
	}
	return decodeComment(postID, snap)
}

func (r *firestoreCommentRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	defer observability.TrackQuery("list", commentsCollection)()
	snaps, err := r.comments(postID).OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]*models.Comment, 0, len(snaps))
	for _, snap := range snaps {
		c, err := decodeComment(postID, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *firestoreCommentRepository) ListByPosts(ctx context.Context, postIDs []string) (map[string][]*models.Comment, error) {
	out := make(map[string][]*models.Comment, len(postIDs))
	for _, id := range postIDs {
		comments, err := r.ListByPost(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = comments
	}
	return out, nil
}

func decodeComment(postID string, snap *firestore.DocumentSnapshot) (*models.Comment, error) {
	var c models.Comment
	if err := snap.DataTo(&c); err != nil {
		return nil, err
	}
	c.ID = snap.Ref.ID
	c.PostID = postID
	return &c, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
