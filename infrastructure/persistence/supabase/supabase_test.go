package supabase

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/core/entities"
	"mindo/domain/core/valueobjects"
	pkgerrors "mindo/pkg/errors"
)

const publicBase = "https://abc.supabase.co/storage/v1/object/public/mindo-assets/"

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) UploadFile(bucketID, relativePath string, data io.Reader, opts ...storage_go.FileOptions) (storage_go.FileUploadResponse, error) {
	body, _ := io.ReadAll(data)
	args := m.Called(bucketID, relativePath, string(body), opts)
	return storage_go.FileUploadResponse{}, args.Error(0)
}

func (m *mockObjectStore) RemoveFile(bucketID string, paths []string) ([]storage_go.FileUploadResponse, error) {
	args := m.Called(bucketID, paths)
	return nil, args.Error(0)
}

func (m *mockObjectStore) GetPublicUrl(bucketID, filePath string, _ ...storage_go.UrlOptions) storage_go.SignedUrlResponse {
	return storage_go.SignedUrlResponse{SignedURL: publicBase + filePath}
}

func TestNodeRow_DecodesJoinedRow(t *testing.T) {
	raw := `{
		"id": "n1", "user_id": "u1", "title": "Cell", "type": "image", "status": "learning",
		"tags": ["bio"], "weight": 2, "position": {"x": 1.5, "y": -3},
		"data": {"url": "https://x/y.png", "style": {"width": 300, "height": 200}},
		"last_review": "2025-06-01T12:00:00+00:00", "next_review": null,
		"created_at": "2025-05-01T00:00:00Z", "updated_at": "2025-05-02T00:00:00Z",
		"memory_units": [{"id": "m1", "question": "Q?", "answer": "A", "text_segment": "", "status": "new", "interval": 0}]
	}`
	var row nodeRow
	require.NoError(t, json.Unmarshal([]byte(raw), &row))

	n := row.toEntity()

	assert.Equal(t, valueobjects.NodeID("n1"), n.ID)
	assert.Equal(t, "Cell", n.Label)
	assert.Equal(t, valueobjects.ImageContent{URL: "https://x/y.png"}, n.Content)
	assert.Equal(t, valueobjects.Dimensions{Width: 300, Height: 200}, n.Dimensions)
	assert.Equal(t, valueobjects.Position{X: 1.5, Y: -3}, n.Position)
	require.NotNil(t, n.LastReview)
	assert.Nil(t, n.NextReview)
	require.Len(t, n.MemoryUnits, 1)
	assert.Equal(t, entities.UnitStatusNew, n.MemoryUnits[0].Status)
}

func TestEdgeRow_NullColumnsBecomeEmpty(t *testing.T) {
	raw := `{"id": "e1", "source_id": "a", "target_id": "b", "type": "socratic",
		"label": null, "is_tentative": true, "source_handle": null, "target_handle": "b-left",
		"created_at": "2025-05-01T00:00:00Z", "updated_at": "2025-05-01T00:00:00Z"}`
	var row edgeRow
	require.NoError(t, json.Unmarshal([]byte(raw), &row))

	e := row.toEntity()

	assert.True(t, e.IsTentative)
	assert.Empty(t, e.SemanticLabel)
	assert.Empty(t, e.SourceHandle)
	assert.Equal(t, "b-left", e.TargetHandle)
}

func TestNodeUpdateColumns(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	label := "Renamed"
	cols := nodeUpdateColumns(ports.NodeUpdate{
		Label:    &label,
		Position: &valueobjects.Position{X: 1, Y: 2},
	}, now)

	assert.Equal(t, map[string]any{
		"title":      "Renamed",
		"position":   valueobjects.Position{X: 1, Y: 2},
		"updated_at": now,
	}, cols)
}

func TestBlobStorage_UploadAndDelete(t *testing.T) {
	// Arrange
	store := new(mockObjectStore)
	s := NewBlobStorage(store, "mindo-assets", zap.NewNop())
	store.On("UploadFile", "mindo-assets", "images/cell-1.png", "png-bytes", mock.Anything).Return(nil)
	store.On("RemoveFile", "mindo-assets", []string{"images/cell-1.png"}).Return(nil)

	// Act
	url, err := s.Upload(context.Background(), "images", "cell-1.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	delErr := s.Delete(context.Background(), url+"?t=1")

	// Assert
	assert.Equal(t, publicBase+"images/cell-1.png", url)
	assert.NoError(t, delErr)
	store.AssertExpectations(t)

	opts := store.Calls[0].Arguments.Get(3).([]storage_go.FileOptions)
	require.Len(t, opts, 1)
	assert.False(t, *opts[0].Upsert)
	assert.Equal(t, "image/png", *opts[0].ContentType)
}

func TestBlobStorage_IsManaged(t *testing.T) {
	s := NewBlobStorage(new(mockObjectStore), "mindo-assets", zap.NewNop())

	assert.True(t, s.IsManaged(publicBase+"videos/a.mp4"))
	assert.False(t, s.IsManaged("https://youtube.com/watch?v=1"))
	assert.False(t, s.IsManaged(publicBase))
	assert.True(t, pkgerrors.IsValidation(s.Delete(context.Background(), "https://elsewhere/x.png")))
}
