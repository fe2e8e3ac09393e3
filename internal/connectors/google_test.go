package connectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fs1diag/internal/config"
)

func TestGoogleTokenSourceRequiresRefreshToken(t *testing.T) {
	_, err := GoogleTokenSource(context.Background(), config.Config{GoogleClientID: "id", GoogleClientSecret: "secret"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_REFRESH_TOKEN")

	ts, err := GoogleTokenSource(context.Background(), config.Config{GoogleClientID: "id", GoogleClientSecret: "secret", GoogleRefreshToken: "rt"})
	require.NoError(t, err)
	assert.NotNil(t, ts)
}
