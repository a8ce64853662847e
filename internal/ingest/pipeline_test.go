package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"snapfeed/internal/identity"
	"snapfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ticketStub is a stub for broker.TicketIssuer.
type ticketStub struct {
	issueFn func(context.Context, string, string) (*models.UploadTicket, error)
	calls   []string
}

func (s *ticketStub) IssueTicket(ctx context.Context, token, folder string) (*models.UploadTicket, error) {
	s.calls = append(s.calls, folder)
	return s.issueFn(ctx, token, folder)
}

// uploaderStub is a stub for storage.Uploader.
type uploaderStub struct {
	uploadFn func(context.Context, models.UploadFile, *models.UploadTicket) (*models.StoredObject, error)
	files    []string
}

func (s *uploaderStub) Upload(ctx context.Context, file models.UploadFile, ticket *models.UploadTicket) (*models.StoredObject, error) {
	s.files = append(s.files, file.Name)
	return s.uploadFn(ctx, file, ticket)
}

// writerStub is a stub for PostWriter.
type writerStub struct {
	writeFn func(context.Context, *models.Post) error
	posts   []*models.Post
}

func (s *writerStub) WritePost(ctx context.Context, post *models.Post) error {
	if err := s.writeFn(ctx, post); err != nil {
		return err
	}
	post.ID = "post-" + post.FileName
	s.posts = append(s.posts, post)
	return nil
}

func okTickets() *ticketStub {
	return &ticketStub{issueFn: func(_ context.Context, token, folder string) (*models.UploadTicket, error) {
		return &models.UploadTicket{Timestamp: 1, Signature: "sig-" + token, APIKey: "k", CloudName: "demo", Folder: folder}, nil
	}}
}

func okUploader() *uploaderStub {
	return &uploaderStub{uploadFn: func(_ context.Context, f models.UploadFile, _ *models.UploadTicket) (*models.StoredObject, error) {
		return &models.StoredObject{SecureURL: "https://cdn/" + f.Name, ResourceKind: models.ResourceImage, Format: "jpg", StorageKey: "k/" + f.Name}, nil
	}}
}

func okWriter() *writerStub {
	return &writerStub{writeFn: func(_ context.Context, _ *models.Post) error { return nil }}
}

func files(names ...string) []models.UploadFile {
	out := make([]models.UploadFile, len(names))
	for i, n := range names {
		out[i] = models.UploadFile{Name: n, Content: []byte(n)}
	}
	return out
}

var alice = &models.Identity{UserID: "u1", DisplayName: "Alice", AvatarURL: "https://a/p.png"}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestCreatePost_AllFilesSucceed(t *testing.T) {
	t.Parallel()

	tickets, up, w := okTickets(), okUploader(), okWriter()
	reloads := 0
	p := New(tickets, up, w, WithSleep(noSleep), WithReload(func(context.Context) { reloads++ }))

	res, err := p.CreatePost(context.Background(), Request{
		User: alice, Tokens: identity.StaticToken("tok"), Files: files("a.jpg", "b.jpg"), Caption: "  trip  ",
	})
	require.NoError(t, err)
	require.Len(t, res.Posts, 2)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 1, reloads)
	assert.Equal(t, []string{"user_u1", "user_u1"}, tickets.calls)

	for _, post := range res.Posts {
		assert.Equal(t, "trip", post.Caption, "caption is shared across the batch")
		assert.Equal(t, "u1", post.OwnerID)
		assert.Equal(t, "Alice", post.OwnerName)
		assert.Equal(t, models.ResourceImage, post.ResourceKind)
		assert.NotEmpty(t, post.URL)
	}
	assert.Equal(t, "a.jpg", res.Posts[0].FileName, "falls back to the local file name")
}

func TestCreatePost_PartialFailureIsolated(t *testing.T) {
	t.Parallel()

	up := &uploaderStub{uploadFn: func(_ context.Context, f models.UploadFile, _ *models.UploadTicket) (*models.StoredObject, error) {
		if f.Name == "2.png" {
			return nil, models.NewRemoteRejectedError("Upload failed: no secure URL returned")
		}
		return &models.StoredObject{SecureURL: "https://cdn/" + f.Name, ResourceKind: models.ResourceImage}, nil
	}}
	w := okWriter()
	p := New(okTickets(), up, w, WithSleep(noSleep))

	res, err := p.CreatePost(context.Background(), Request{
		User: alice, Tokens: identity.StaticToken("tok"), Files: files("1.png", "2.png", "3.png"),
	})
	require.NoError(t, err)

	assert.Len(t, res.Posts, 2)
	assert.Len(t, w.posts, 2)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, FileFailure{Index: 1, FileName: "2.png", Code: models.CodeRemoteRejected, Error: "Upload failed: no secure URL returned"}, res.Failures[0])
	assert.Equal(t, []string{"1.png", "2.png", "3.png"}, up.files, "later files still run")
}

func TestCreatePost_WriteFailureIsPerFile(t *testing.T) {
	t.Parallel()

	w := &writerStub{writeFn: func(_ context.Context, p *models.Post) error {
		if p.FileName == "a.jpg" {
			return models.NewInternalError(errors.New("db down"))
		}
		return nil
	}}
	p := New(okTickets(), okUploader(), w, WithSleep(noSleep))

	res, err := p.CreatePost(context.Background(), Request{User: alice, Tokens: identity.StaticToken("tok"), Files: files("a.jpg", "b.jpg")})
	require.NoError(t, err)
	assert.Len(t, res.Posts, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.CodeInternal, res.Failures[0].Code)
}

func TestCreatePost_CaptionOnly(t *testing.T) {
	t.Parallel()

	tickets, up, w := okTickets(), okUploader(), okWriter()
	reloads := 0
	p := New(tickets, up, w, WithReload(func(context.Context) { reloads++ }))

	res, err := p.CreatePost(context.Background(), Request{User: alice, Caption: "  hello world "})
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)

	post := res.Posts[0]
	assert.Equal(t, models.ResourceText, post.ResourceKind)
	assert.Equal(t, "hello world", post.Caption)
	assert.Empty(t, post.URL)
	assert.Empty(t, post.StorageKey)
	assert.True(t, post.IsText())
	assert.Empty(t, tickets.calls)
	assert.Empty(t, up.files)
	assert.Equal(t, 1, reloads)
}

func TestCreatePost_CaptionOnlyWriteFails(t *testing.T) {
	t.Parallel()

	w := &writerStub{writeFn: func(context.Context, *models.Post) error { return errors.New("boom") }}
	reloads := 0
	p := New(okTickets(), okUploader(), w, WithReload(func(context.Context) { reloads++ }))

	_, err := p.CreatePost(context.Background(), Request{User: alice, Caption: "hi"})
	assert.Error(t, err)
	assert.Zero(t, reloads)
}

func TestCreatePost_NothingToPost(t *testing.T) {
	t.Parallel()

	w := okWriter()
	reloads := 0
	p := New(okTickets(), okUploader(), w, WithReload(func(context.Context) { reloads++ }))

	res, err := p.CreatePost(context.Background(), Request{User: alice, Caption: " \n\t "})
	assert.Nil(t, res)
	assert.True(t, models.HasCode(err, models.CodeNothingToPost))
	assert.Empty(t, w.posts)
	assert.Zero(t, reloads)
}

func TestCreatePost_Unauthenticated(t *testing.T) {
	t.Parallel()

	tickets, up, w := okTickets(), okUploader(), okWriter()
	p := New(tickets, up, w)

	for _, user := range []*models.Identity{nil, {}} {
		_, err := p.CreatePost(context.Background(), Request{User: user, Files: files("a.jpg"), Caption: "x"})
		assert.True(t, models.HasCode(err, models.CodeUnauthenticated))
	}
	assert.Empty(t, tickets.calls)
	assert.Empty(t, up.files)
	assert.Empty(t, w.posts)
}

func TestCreatePost_UnauthorizedTicketMeansNoUpload(t *testing.T) {
	t.Parallel()

	tickets := &ticketStub{issueFn: func(context.Context, string, string) (*models.UploadTicket, error) {
		return nil, models.NewUnauthorizedError("Invalid token")
	}}
	up, w := okUploader(), okWriter()
	p := New(tickets, up, w, WithSleep(noSleep))

	res, err := p.CreatePost(context.Background(), Request{User: alice, Tokens: identity.StaticToken("bad"), Files: files("a.jpg", "b.jpg")})
	require.NoError(t, err)
	assert.Empty(t, res.Posts)
	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.Equal(t, models.CodeUnauthorized, f.Code)
	}
	assert.Empty(t, up.files, "no ticket, no upload")
	assert.Empty(t, w.posts)
}

func TestCreatePost_MissingTokenSource(t *testing.T) {
	t.Parallel()

	tickets, up := okTickets(), okUploader()
	p := New(tickets, up, okWriter(), WithSleep(noSleep))

	res, err := p.CreatePost(context.Background(), Request{User: alice, Files: files("a.jpg")})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, models.CodeUnauthorized, res.Failures[0].Code)
	assert.Empty(t, tickets.calls)
	assert.Empty(t, up.files)
}

func TestCreatePost_FreshTokenPerFile(t *testing.T) {
	t.Parallel()

	var tokens []string
	tickets := &ticketStub{issueFn: func(_ context.Context, token, folder string) (*models.UploadTicket, error) {
		tokens = append(tokens, token)
		return &models.UploadTicket{Signature: "s", CloudName: "demo", Folder: folder}, nil
	}}
	j := identity.NewJWT("test-secret-key-12345678901234567890123456789012", time.Minute)
	p := New(tickets, okUploader(), okWriter(), WithSleep(noSleep))

	_, err := p.CreatePost(context.Background(), Request{User: alice, Tokens: j.Source(alice), Files: files("a", "b", "c")})
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.NotEqual(t, tokens[0], tokens[1])
	assert.NotEqual(t, tokens[1], tokens[2])
}

func TestCreatePost_DelayBetweenFiles(t *testing.T) {
	t.Parallel()

	var events []string
	up := &uploaderStub{uploadFn: func(_ context.Context, f models.UploadFile, _ *models.UploadTicket) (*models.StoredObject, error) {
		events = append(events, "upload "+f.Name)
		if f.Name == "b" {
			return nil, models.NewTransportError("object upload", errors.New("reset"))
		}
		return &models.StoredObject{SecureURL: "https://cdn/" + f.Name}, nil
	}}
	sleep := func(_ context.Context, d time.Duration) error {
		events = append(events, "sleep "+d.String())
		return nil
	}
	p := New(okTickets(), up, okWriter(), WithDelay(250*time.Millisecond), WithSleep(sleep))

	_, err := p.CreatePost(context.Background(), Request{User: alice, Tokens: identity.StaticToken("t"), Files: files("a", "b", "c")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"upload a", "sleep 250ms",
		"upload b", "sleep 250ms",
		"upload c",
	}, events)
}

func TestCreatePost_NoDelayForSingleFileOrZeroDelay(t *testing.T) {
	t.Parallel()

	sleeps := 0
	sleep := func(context.Context, time.Duration) error { sleeps++; return nil }

	_, err := New(okTickets(), okUploader(), okWriter(), WithSleep(sleep)).
		CreatePost(context.Background(), Request{User: alice, Tokens: identity.StaticToken("t"), Files: files("a")})
	require.NoError(t, err)

	_, err = New(okTickets(), okUploader(), okWriter(), WithSleep(sleep), WithDelay(-time.Second)).
		CreatePost(context.Background(), Request{User: alice, Tokens: identity.StaticToken("t"), Files: files("a", "b")})
	require.NoError(t, err)
	assert.Zero(t, sleeps)
}

func TestCreatePost_CancellationAbandonsRemaining(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	up := &uploaderStub{uploadFn: func(_ context.Context, f models.UploadFile, _ *models.UploadTicket) (*models.StoredObject, error) {
		cancel()
		return &models.StoredObject{SecureURL: "https://cdn/" + f.Name}, nil
	}}
	reloaded := false
	p := New(okTickets(), up, okWriter(), WithReload(func(rctx context.Context) {
		reloaded = rctx.Err() == nil
	}))

	res, err := p.CreatePost(ctx, Request{User: alice, Tokens: identity.StaticToken("t"), Files: files("a", "b", "c")})
	require.NoError(t, err)
	assert.Len(t, res.Posts, 1)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "b", res.Failures[0].FileName)
	assert.Equal(t, 2, res.Failures[1].Index)
	assert.Equal(t, []string{"a"}, up.files)
	assert.True(t, reloaded, "reload runs with a live context")
}
