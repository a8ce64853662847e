// Package ingest turns a user's selected files and caption into committed posts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"snapfeed/internal/broker"
	"snapfeed/internal/identity"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/observability"
	"snapfeed/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultDelay separates consecutive file uploads of one submission.
const DefaultDelay = 500 * time.Millisecond

// PostWriter persists one post and fills in its ID and creation time.
type PostWriter interface {
	WritePost(ctx context.Context, post *models.Post) error
}

// Request is one submission: zero or more files sharing one caption.
type Request struct {
	User    *models.Identity
	Tokens  identity.TokenSource
	Files   []models.UploadFile
	Caption string
}

// FileFailure records why one file did not become a post.
type FileFailure struct {
	Index    int    `json:"index"`
	FileName string `json:"file_name"`
	Code     string `json:"code"`
	Error    string `json:"error"`
}

// Result lists the posts created and the files that failed.
type Result struct {
	Posts    []*models.Post `json:"posts"`
	Failures []FileFailure  `json:"failures"`
}

// Pipeline runs submissions one file at a time.
type Pipeline struct {
	tickets  broker.TicketIssuer
	uploader storage.Uploader
	posts    PostWriter
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	reload   func(ctx context.Context)
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithDelay sets the pause between consecutive files. Negative means none.
func WithDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d < 0 {
			d = 0
		}
		p.delay = d
	}
}

// WithSleep replaces the function used to wait between files.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// WithReload registers a hook run once after every batch that got past validation.
func WithReload(reload func(ctx context.Context)) Option {
	return func(p *Pipeline) { p.reload = reload }
}

// New creates a Pipeline.
func New(tickets broker.TicketIssuer, uploader storage.Uploader, posts PostWriter, opts ...Option) *Pipeline {
	p := &Pipeline{
		tickets:  tickets,
		uploader: uploader,
		posts:    posts,
		delay:    DefaultDelay,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreatePost processes req. Per-file failures are collected in the Result; only
// Unauthenticated, NothingToPost and a failed caption-only write abort the call.
func (p *Pipeline) CreatePost(ctx context.Context, req Request) (*Result, error) {
	if req.User == nil || req.User.UserID == "" {
		return nil, models.NewUnauthenticatedError()
	}

	caption := strings.TrimSpace(req.Caption)
	result := &Result{Posts: []*models.Post{}, Failures: []FileFailure{}}

	switch {
	case len(req.Files) > 0:
		p.uploadAll(ctx, req, caption, result)
	case caption != "":
		post := models.NewTextPost(req.User, caption)
		if err := p.posts.WritePost(ctx, post); err != nil {
			return nil, err
		}
		result.Posts = append(result.Posts, post)
	default:
		return nil, models.NewNothingToPostError()
	}

	if p.reload != nil {
		p.reload(context.WithoutCancel(ctx))
	}
	return result, nil
}

func (p *Pipeline) uploadAll(ctx context.Context, req Request, caption string, result *Result) {
	folder := req.User.UploadFolder()

	for i, file := range req.Files {
		if i > 0 && p.delay > 0 {
			if err := p.sleep(ctx, p.delay); err != nil {
				p.abandon(ctx, req.Files, i, err, result)
				return
			}
		}
		if err := ctx.Err(); err != nil {
			p.abandon(ctx, req.Files, i, err, result)
			return
		}

		post, err := p.processFile(ctx, req, folder, file, caption)
		observability.IngestedFiles.WithLabelValues(observability.Outcome(models.ErrorCode(err), err)).Inc()
		if err != nil {
			p.logFailure(ctx, file.Name, err)
			result.Failures = append(result.Failures, failure(i, file.Name, err))
			continue
		}
		result.Posts = append(result.Posts, post)
	}
}

func (p *Pipeline) processFile(ctx context.Context, req Request, folder string, file models.UploadFile, caption string) (*models.Post, error) {
	span, ctx := observability.NewSpan(ctx, "ingest.file")
	defer span.End()
	span.AddAttributes(
		attribute.String("file.name", file.Name),
		attribute.Int("file.size", len(file.Content)),
	)

	post, err := p.runFile(ctx, req, folder, file, caption)
	span.SetError(err)
	return post, err
}

func (p *Pipeline) runFile(ctx context.Context, req Request, folder string, file models.UploadFile, caption string) (*models.Post, error) {
	if req.Tokens == nil {
		return nil, models.NewUnauthorizedError("Missing bearer token")
	}
	token, err := req.Tokens.Token(ctx)
	if err != nil {
		return nil, models.NewUnauthorizedError(fmt.Sprintf("Could not obtain identity token: %v", err))
	}

	ticket, err := p.tickets.IssueTicket(ctx, token, folder)
	if err != nil {
		return nil, err
	}

	obj, err := p.uploader.Upload(ctx, file, ticket)
	if err != nil {
		return nil, err
	}

	post := models.NewMediaPost(req.User, obj, file.Name, caption)
	if err := p.posts.WritePost(ctx, post); err != nil {
		// The object stays in the store without a post.
		middleware.Logger.WarnContext(ctx, "Stored object has no post record", "file", file.Name, "storage_key", obj.StorageKey)
		return nil, err
	}
	return post, nil
}

func (p *Pipeline) abandon(ctx context.Context, files []models.UploadFile, from int, cause error, result *Result) {
	middleware.Logger.WarnContext(ctx, "Submission cancelled", "remaining", len(files)-from, "error", cause)
	for i := from; i < len(files); i++ {
		err := models.NewTransportError("upload", cause)
		observability.IngestedFiles.WithLabelValues(err.Code).Inc()
		result.Failures = append(result.Failures, failure(i, files[i].Name, err))
	}
}

func (p *Pipeline) logFailure(ctx context.Context, name string, err error) {
	switch models.ErrorCode(err) {
	case models.CodeTransport:
		middleware.Logger.ErrorContext(ctx, "File upload failed in transport", "file", name, "error", err)
	case models.CodeRemoteRejected:
		middleware.Logger.ErrorContext(ctx, "File upload rejected by object store", "file", name, "error", err)
	case models.CodeUnauthorized, models.CodeMisconfigured:
		middleware.Logger.ErrorContext(ctx, "Upload ticket refused", "file", name, "error", err)
	default:
		middleware.Logger.ErrorContext(ctx, "File could not be posted", "file", name, "error", err)
	}
}

func failure(index int, name string, err error) FileFailure {
	f := FileFailure{Index: index, FileName: name, Code: models.ErrorCode(err), Error: err.Error()}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		f.Error = appErr.Message
	}
	return f
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
