package memory

import (
	"context"
	"io"
	"strings"
	"sync"

	"mindo/domain/events"
	"mindo/pkg/errors"
)

// BlobStore keeps uploaded files in memory under a fake public base URL
type BlobStore struct {
	baseURL string

	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
	failDel error
}

// NewBlobStore creates a store whose URLs start with baseURL
func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		files:   make(map[string][]byte),
	}
}

// FailDeletes makes Delete return err
func (b *BlobStore) FailDeletes(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failDel = err
}

// Upload implements ports.BlobStorage
func (b *BlobStore) Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.NewInternalError("failed to read upload").WithCause(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	url := b.baseURL + "/" + folder + "/" + name
	b.files[url] = data
	return url, nil
}

// Delete implements ports.BlobStorage
func (b *BlobStore) Delete(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, url)
	if b.failDel != nil {
		return b.failDel
	}
	delete(b.files, url)
	return nil
}

// IsManaged implements ports.BlobStorage
func (b *BlobStore) IsManaged(url string) bool {
	return strings.HasPrefix(url, b.baseURL+"/")
}

// Has reports whether a file is stored at url
func (b *BlobStore) Has(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[url]
	return ok
}

// Deleted returns the URLs Delete was called with
func (b *BlobStore) Deleted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

// EventRecorder is an EventPublisher that keeps everything it receives
type EventRecorder struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

// NewEventRecorder creates an empty recorder
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Publish implements ports.EventPublisher
func (r *EventRecorder) Publish(ctx context.Context, event events.DomainEvent) error {
	return r.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch implements ports.EventPublisher
func (r *EventRecorder) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evts...)
	return nil
}

// Types returns the recorded event types in order
func (r *EventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.GetEventType())
	}
	return out
}

// Events returns the recorded events
func (r *EventRecorder) Events() []events.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.DomainEvent(nil), r.events...)
}
