package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"confluence-backend/internal/config"
)

// NewApp initialises the Firebase app shared by messaging and Firestore.
// It returns nil without error when no credentials are configured.
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	if !cfg.HasCredentials() {
		return nil, nil
	}

	var opt option.ClientOption
	if cfg.CredentialsPath != "" {
		opt = option.WithCredentialsFile(cfg.CredentialsPath)
	} else {
		opt = option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return app, nil
}
