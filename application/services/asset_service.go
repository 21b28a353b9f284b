package services

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/domain/core/valueobjects"
	"mindo/pkg/errors"
)

const sniffLen = 3072

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]`)
	dashRun  = regexp.MustCompile(`-+`)
)

var folderFor = map[valueobjects.NodeType]string{
	valueobjects.NodeTypeVideo: "videos",
	valueobjects.NodeTypeImage: "images",
	valueobjects.NodeTypePDF:   "documents",
}

// AssetService uploads media files and attaches them to media nodes
type AssetService struct {
	workspaces *Workspaces
	blobs      ports.BlobStorage
	runner     *PersistenceRunner
	maxBytes   int64
	logger     *zap.Logger
	now        func() time.Time
}

// NewAssetService creates an asset service accepting files up to maxBytes
func NewAssetService(workspaces *Workspaces, blobs ports.BlobStorage, runner *PersistenceRunner, maxBytes int64, logger *zap.Logger) *AssetService {
	return &AssetService{
		workspaces: workspaces,
		blobs:      blobs,
		runner:     runner,
		maxBytes:   maxBytes,
		logger:     logger,
		now:        time.Now,
	}
}

// SanitizeFilename lowercases the base name, replaces every character outside
// [a-z0-9] with a dash, collapses and trims dashes and appends a millisecond
// timestamp before the extension
func SanitizeFilename(filename string, now time.Time) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	name := nonAlnum.ReplaceAllString(strings.ToLower(base), "-")
	name = strings.Trim(dashRun.ReplaceAllString(name, "-"), "-")

	out := name + "-" + strconv.FormatInt(now.UnixMilli(), 10)
	if name == "" {
		out = strconv.FormatInt(now.UnixMilli(), 10)
	}
	if ext != "" {
		out += "." + ext
	}
	return out
}

// FolderFor returns the storage folder of a media node type
func FolderFor(t valueobjects.NodeType) (string, bool) {
	f, ok := folderFor[t]
	return f, ok
}

// AttachMedia uploads r and points the media node at the returned public URL.
// The detected content type must match the node type. A previously attached
// managed file is removed best-effort.
func (s *AssetService) AttachMedia(ctx context.Context, userID string, nodeID valueobjects.NodeID, filename string, r io.Reader) (string, error) {
	if s.blobs == nil {
		return "", errors.NewUnavailableError("blob storage")
	}
	state, err := s.workspaces.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	node, ok := state.Node(nodeID)
	if !ok {
		return "", errors.NewNotFoundError("node")
	}
	folder, ok := FolderFor(node.Type)
	if !ok {
		return "", errors.NewValidationError("only video, image and pdf nodes accept uploads").
			WithDetail("type", string(node.Type))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", errors.NewValidationError("failed to read upload").WithCause(err)
	}
	head = head[:n]
	if n == 0 {
		return "", errors.NewValidationError("upload is empty")
	}
	mt := mimetype.Detect(head)
	if !acceptsMIME(node.Type, mt) {
		return "", errors.NewValidationError("file type does not match node type").
			WithDetail("detected", mt.String()).
			WithDetail("type", string(node.Type))
	}

	body := &limitedReader{r: io.MultiReader(bytes.NewReader(head), r), remaining: s.maxBytes}
	if s.maxBytes <= 0 {
		body.remaining = -1
	}

	name := SanitizeFilename(filename, s.now())
	url, err := s.blobs.Upload(ctx, folder, name, mt.String(), body)
	if body.exceeded {
		return "", errors.NewValidationError("upload exceeds maximum size").WithDetail("maxBytes", s.maxBytes)
	}
	if err != nil {
		return "", errors.NewExternalError("blob storage", err)
	}

	previous := node.Content.MediaURL()
	if err := state.UpdateNode(nodeID, NodePatch{Content: valueobjects.ContentPatch{URL: &url}}); err != nil {
		return "", err
	}
	if previous != "" && previous != url && s.blobs.IsManaged(previous) {
		s.runner.GoBestEffort("deleteReplacedMedia", func(ctx context.Context) error {
			return s.blobs.Delete(ctx, previous)
		}, zap.String("nodeID", nodeID.String()), zap.String("url", previous))
	}

	s.logger.Info("Media attached",
		zap.String("userID", userID),
		zap.String("nodeID", nodeID.String()),
		zap.String("contentType", mt.String()),
		zap.String("url", url))
	return url, nil
}

func acceptsMIME(t valueobjects.NodeType, mt *mimetype.MIME) bool {
	switch t {
	case valueobjects.NodeTypeImage:
		return strings.HasPrefix(mt.String(), "image/")
	case valueobjects.NodeTypeVideo:
		return strings.HasPrefix(mt.String(), "video/")
	case valueobjects.NodeTypePDF:
		return mt.Is("application/pdf")
	}
	return false
}

// limitedReader fails once more than remaining bytes have been read. A
// negative remaining disables the limit.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if l.remaining < 0 {
		return n, err
	}
	if int64(n) > l.remaining {
		l.exceeded = true
		return 0, errors.NewValidationError("upload exceeds maximum size")
	}
	l.remaining -= int64(n)
	return n, err
}
