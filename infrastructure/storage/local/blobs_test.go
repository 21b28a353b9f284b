package local

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgerrors "mindo/pkg/errors"
)

func TestBlobStorage_UploadServeDelete(t *testing.T) {
	// Arrange
	s, err := NewBlobStorage(t.TempDir(), "http://localhost:8080/assets/", zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	// Act
	url, err := s.Upload(ctx, "images", "cell-1.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "http://localhost:8080/assets/images/cell-1.png", url)
	assert.True(t, s.IsManaged(url))

	srv := httptest.NewServer(http.StripPrefix("/assets", s.Handler()))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/assets/images/cell-1.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "png", string(body))

	_, err = s.Upload(ctx, "images", "cell-1.png", "image/png", strings.NewReader("again"))
	assert.True(t, pkgerrors.IsConflict(err))

	require.NoError(t, s.Delete(ctx, url))
	require.NoError(t, s.Delete(ctx, url), "deleting twice is fine")
}

func TestBlobStorage_RejectsForeignAndEscapingPaths(t *testing.T) {
	s, err := NewBlobStorage(t.TempDir(), "http://localhost:8080/assets", zap.NewNop())
	require.NoError(t, err)

	assert.False(t, s.IsManaged("https://youtube.com/watch"))
	assert.True(t, pkgerrors.IsValidation(s.Delete(context.Background(), "https://youtube.com/watch")))

	url, err := s.Upload(context.Background(), "../..", "evil.png", "image/png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/assets/evil.png", url, "paths are confined to the root")
}
