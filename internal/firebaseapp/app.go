// Package firebaseapp constructs the Firebase Admin app shared by identity and storage.
package firebaseapp

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Options selects the project and credentials for the Admin SDK.
type Options struct {
	ProjectID       string
	CredentialsFile string
}

// New builds a Firebase app. With no credentials file the SDK falls back to
// Application Default Credentials (GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, opts Options) (*firebase.App, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}
