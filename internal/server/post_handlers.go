package server

import (
	"mime"

	"snapfeed/internal/models"
	"snapfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultPageSize)

	items, err := s.postService.ListFeed(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(items)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	item, err := s.postService.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(item)
}

// SearchPosts handles GET /api/posts/search?q=...
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 10)

	posts, err := s.postService.SearchPosts(c.UserContext(), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}

	return c.JSON(posts)
}

// CreatePost handles POST /api/posts. The body describes an object the client
// already uploaded with its own ticket, or carries only a caption.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return nil
	}

	var req service.CommitPostInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.CommitPost(c.UserContext(), user, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// DownloadPost handles GET /api/posts/:id/download. The object is streamed
// back as an attachment, or the client is redirected to it when the URL is off
// the object store or fetching fails.
func (s *Server) DownloadPost(c *fiber.Ctx) error {
	d, err := s.postService.Download(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	if d.Body == nil {
		return c.Redirect(d.URL, fiber.StatusFound)
	}

	contentType := d.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": d.Name})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Set(fiber.HeaderContentDisposition, disposition)

	size := -1
	if d.Size >= 0 {
		size = int(d.Size)
	}
	// Fiber closes the body once it has been written.
	return c.SendStream(d.Body, size)
}
