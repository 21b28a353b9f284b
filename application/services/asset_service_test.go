package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindo/domain/core/valueobjects"
	"mindo/infrastructure/persistence/memory"
	pkgerrors "mindo/pkg/errors"
)

// Smallest valid PNG header followed by padding
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

func TestSanitizeFilename(t *testing.T) {
	ts := time.UnixMilli(1717243200000)
	tests := []struct {
		in   string
		want string
	}{
		{"My Photo (1).PNG", "my-photo-1-1717243200000.png"},
		{"--weird__name--.jpeg", "weird-name-1717243200000.jpeg"},
		{"Résumé.pdf", "r-sum-1717243200000.pdf"},
		{"noext", "noext-1717243200000"},
		{"!!!.mp4", "1717243200000.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in, ts))
		})
	}
}

func TestFolderFor(t *testing.T) {
	f, ok := FolderFor(valueobjects.NodeTypePDF)
	assert.True(t, ok)
	assert.Equal(t, "documents", f)
	_, ok = FolderFor(valueobjects.NodeTypeText)
	assert.False(t, ok)
}

func newAssetFixture(t *testing.T, maxBytes int64) (*AssetService, *GraphState, *memory.BlobStore) {
	t.Helper()
	gw := memory.NewGateway()
	w := newTestWorkspaces(t, gw)
	state, err := w.Get(context.Background(), testUser)
	require.NoError(t, err)
	blobs := memory.NewBlobStore("https://cdn.test/mindo-assets")
	runner := NewPersistenceRunner(time.Second, nil, zap.NewNop())
	t.Cleanup(runner.Wait)

	svc := NewAssetService(w, blobs, runner, maxBytes, zap.NewNop())
	svc.now = func() time.Time { return time.UnixMilli(1717243200000) }
	return svc, state, blobs
}

func TestAssetService_AttachMedia(t *testing.T) {
	svc, state, blobs := newAssetFixture(t, 0)
	id, err := state.AddNode(AddNodeParams{Label: "Diagram", Type: valueobjects.NodeTypeImage})
	require.NoError(t, err)

	url, err := svc.AttachMedia(context.Background(), testUser, id, "Cell Diagram.png", bytes.NewReader(pngBytes))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/mindo-assets/images/cell-diagram-1717243200000.png", url)
	assert.True(t, blobs.Has(url))
	n, _ := state.Node(id)
	assert.Equal(t, url, n.Content.MediaURL())

	second, err := svc.AttachMedia(context.Background(), testUser, id, "v2.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	svc.runner.Wait()
	assert.Equal(t, []string{url}, blobs.Deleted())
	assert.True(t, blobs.Has(second))
}

func TestAssetService_RejectsMismatchedType(t *testing.T) {
	svc, state, _ := newAssetFixture(t, 0)
	pdf, _ := state.AddNode(AddNodeParams{Label: "Paper", Type: valueobjects.NodeTypePDF})
	text, _ := state.AddNode(AddNodeParams{Label: "Note"})

	_, err := svc.AttachMedia(context.Background(), testUser, pdf, "x.png", bytes.NewReader(pngBytes))
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.AttachMedia(context.Background(), testUser, text, "x.png", bytes.NewReader(pngBytes))
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.AttachMedia(context.Background(), testUser, pdf, "empty.pdf", strings.NewReader(""))
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAssetService_EnforcesMaxSize(t *testing.T) {
	svc, state, _ := newAssetFixture(t, 16)
	id, _ := state.AddNode(AddNodeParams{Label: "Diagram", Type: valueobjects.NodeTypeImage})

	_, err := svc.AttachMedia(context.Background(), testUser, id, "big.png", bytes.NewReader(pngBytes))

	assert.True(t, pkgerrors.IsValidation(err))
	n, _ := state.Node(id)
	assert.Empty(t, n.Content.MediaURL())
}
