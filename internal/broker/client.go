package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"snapfeed/internal/models"
)

// SignaturePath is the ticket endpoint served by the API.
const SignaturePath = "/api/uploads/signature"

// Client requests upload tickets from a remote API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a ticket client for the API at baseURL. A nil httpClient
// gets a 15 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type signatureRequest struct {
	Folder string `json:"folder,omitempty"`
}

// IssueTicket implements TicketIssuer over HTTP.
func (c *Client) IssueTicket(ctx context.Context, token, folder string) (*models.UploadTicket, error) {
	body, err := json.Marshal(signatureRequest{Folder: folder})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SignaturePath, bytes.NewReader(body))
	if err != nil {
		return nil, models.NewTransportError("signature request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.NewTransportError("signature request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, models.NewTransportError("signature request", err)
	}

	var payload models.TicketResponse
	decodeErr := json.Unmarshal(raw, &payload)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, models.NewUnauthorizedError(orDefault(payload.Error, "Invalid token"))
	case resp.StatusCode == http.StatusInternalServerError && payload.Error != "":
		return nil, models.NewMisconfiguredError("remote signing configuration")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, models.NewTransportError("signature request", fmt.Errorf("unexpected status %d", resp.StatusCode))
	case decodeErr != nil:
		return nil, models.NewTransportError("signature request", fmt.Errorf("decode response: %w", decodeErr))
	case !payload.OK || payload.Signature == "":
		return nil, models.NewTransportError("signature request", fmt.Errorf("ticket not issued: %s", orDefault(payload.Error, "empty signature")))
	}

	return &models.UploadTicket{
		Timestamp: payload.Timestamp,
		Signature: payload.Signature,
		APIKey:    payload.APIKey,
		CloudName: payload.CloudName,
		Folder:    folder,
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
