// Package broker issues signed, single-use upload tickets for the object store.
package broker

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"snapfeed/internal/identity"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/observability"
)

// TicketIssuer exchanges a caller identity token for an upload ticket.
// Broker issues tickets locally; Client asks a remote API for them.
type TicketIssuer interface {
	IssueTicket(ctx context.Context, token, folder string) (*models.UploadTicket, error)
}

// Credentials are the object-store account settings the broker signs with.
type Credentials struct {
	CloudName string
	APIKey    string
	APISecret string
}

func (c Credentials) missing() string {
	var names []string
	if c.APISecret == "" {
		names = append(names, "api secret")
	}
	if c.APIKey == "" {
		names = append(names, "api key")
	}
	if c.CloudName == "" {
		names = append(names, "cloud name")
	}
	return strings.Join(names, ", ")
}

// Broker verifies identity tokens and signs upload parameters. It holds no state
// beyond its configuration.
type Broker struct {
	verifier identity.Verifier
	creds    Credentials
	now      func() time.Time
}

// New creates a Broker.
func New(verifier identity.Verifier, creds Credentials) *Broker {
	return &Broker{verifier: verifier, creds: creds, now: time.Now}
}

// IssueTicket returns a ticket for uploading into folder. Configuration gaps are
// reported before the token is looked at.
func (b *Broker) IssueTicket(ctx context.Context, token, folder string) (*models.UploadTicket, error) {
	ticket, err := b.issue(ctx, token, folder)
	observability.TicketsIssued.WithLabelValues(observability.Outcome(models.ErrorCode(err), err)).Inc()
	return ticket, err
}

func (b *Broker) issue(ctx context.Context, token, folder string) (*models.UploadTicket, error) {
	if missing := b.creds.missing(); missing != "" {
		middleware.Logger.ErrorContext(ctx, "Upload ticket refused: object store not configured", "missing", missing)
		return nil, models.NewMisconfiguredError(missing)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.NewUnauthorizedError("Missing bearer token")
	}

	caller, err := b.verifier.Verify(ctx, token)
	if err != nil || caller == nil {
		if errors.Is(err, identity.ErrMissingToken) {
			return nil, models.NewUnauthorizedError("Missing bearer token")
		}
		middleware.Logger.WarnContext(ctx, "Upload ticket refused: token verification failed", "error", err)
		return nil, models.NewUnauthorizedError("Invalid token")
	}

	folder = strings.TrimSpace(folder)
	ts := b.now().Unix()
	params := map[string]string{"timestamp": strconv.FormatInt(ts, 10)}
	if folder != "" {
		params["folder"] = folder
	}

	return &models.UploadTicket{
		Timestamp: ts,
		Signature: Sign(params, b.creds.APISecret),
		APIKey:    b.creds.APIKey,
		CloudName: b.creds.CloudName,
		Folder:    folder,
	}, nil
}

// Sign computes the object store's request signature: parameters with non-empty
// values sorted by key, joined as k=v&k=v, the secret appended, SHA-1 hex encoded.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
