package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"snapfeed/internal/featureflags"
	"snapfeed/internal/identity"
	"snapfeed/internal/ingest"
	"snapfeed/internal/models"
	"snapfeed/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// IssueUploadSignature handles POST /api/uploads/signature. Missing object-store
// credentials are reported before the caller's token is looked at.
func (s *Server) IssueUploadSignature(c *fiber.Ctx) error {
	var req struct {
		Folder string `json:"folder"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	token := identity.BearerToken(c.Get("Authorization"))
	ticket, err := s.broker.IssueTicket(c.UserContext(), token, req.Folder)
	if err != nil {
		resp := models.TicketResponse{OK: false, Error: "Server misconfigured"}
		if !models.HasCode(err, models.CodeMisconfigured) {
			resp.Error = "Unauthorized"
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				resp.Details = appErr.Message
			}
		}
		return c.Status(statusForError(err)).JSON(resp)
	}

	return c.JSON(models.TicketResponse{
		OK:        true,
		Signature: ticket.Signature,
		Timestamp: ticket.Timestamp,
		APIKey:    ticket.APIKey,
		CloudName: ticket.CloudName,
	})
}

// UploadPost handles POST /api/posts/upload. Each file in the "files" field
// becomes its own post sharing the "caption" field; files are processed one at
// a time and a failing file does not stop the rest.
func (s *Server) UploadPost(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return nil
	}

	if s.featureFlags != nil && !s.featureFlags.Enabled(featureflags.ServerIngest, user.UserID) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Feature", featureflags.ServerIngest))
	}

	caption := c.FormValue("caption")
	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File["files"]
	}

	if len(headers) > s.config.UploadMaxFiles {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(fmt.Sprintf("At most %d files per post", s.config.UploadMaxFiles)))
	}

	files, err := s.readFiles(headers)
	if err != nil {
		return respondError(c, err)
	}

	result, err := s.pipeline.CreatePost(c.UserContext(), ingest.Request{
		User:    user,
		Tokens:  s.tokenSource(c, user),
		Files:   files,
		Caption: caption,
	})
	if err != nil {
		return respondError(c, err)
	}

	if len(result.Posts) == 0 && len(result.Failures) > 0 {
		first := result.Failures[0]
		return c.Status(statusForError(&models.AppError{Code: first.Code})).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// tokenSource picks how the pipeline authenticates its ticket requests. With
// the built-in issuer every file gets a freshly minted token; otherwise the
// caller's own token is forwarded.
func (s *Server) tokenSource(c *fiber.Ctx, user *models.Identity) identity.TokenSource {
	if s.minter != nil {
		return s.minter.Source(user)
	}
	token, _ := c.Locals("token").(string)
	return identity.StaticToken(token)
}

func (s *Server) readFiles(headers []*multipart.FileHeader) ([]models.UploadFile, error) {
	maxBytes := int64(s.config.UploadMaxSizeMB) * 1024 * 1024
	files := make([]models.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxBytes {
			return nil, models.NewValidationError(
				fmt.Sprintf("%s is larger than %d MB", fh.Filename, s.config.UploadMaxSizeMB))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, models.NewValidationError("Could not read " + fh.Filename)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, models.NewValidationError("Could not read " + fh.Filename)
		}

		file := models.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		}
		file.ContentType = storage.ContentType(file)
		files = append(files, file)
	}
	return files, nil
}
