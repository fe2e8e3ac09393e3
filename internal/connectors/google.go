package connectors

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"fs1diag/internal/config"
)

// GoogleTokenSource builds a refreshing token source from the shared Google
// OAuth client used by the Gmail and Sheets connectors.
func GoogleTokenSource(ctx context.Context, cfg config.Config, scopes ...string) (oauth2.TokenSource, error) {
	if err := cfg.Require("GOOGLE_CLIENT_ID", cfg.GoogleClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_REFRESH_TOKEN", cfg.GoogleRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       scopes,
	}
	return oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken}), nil
}
