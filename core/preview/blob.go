package preview

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/GanpatGang/GanpatStudy/core"
)

var ErrBlobNotFound = errors.New("blob not found or expired")

// Blob is a short-lived handle to decoded material bytes, served under an
// opaque token so remote viewers can fetch the document.
type Blob struct {
	Token       string
	Name        string
	ContentType string
	Data        []byte
	ExpiresAt   time.Time
}

type blobEntry struct {
	blob  Blob
	timer *time.Timer
}

// BlobStore registers blobs with a fixed TTL. Expired or revoked tokens
// resolve to ErrBlobNotFound; expiry of an already-revoked token is a no-op.
type BlobStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*blobEntry
	logger  core.Logger
}

func NewBlobStore(ttl time.Duration, logger core.Logger) *BlobStore {
	return &BlobStore{
		ttl:     ttl,
		entries: make(map[string]*blobEntry),
		logger:  logger,
	}
}

func (bs *BlobStore) Put(name, contentType string, data []byte) Blob {
	token := uuid.New().String()
	blob := Blob{
		Token:       token,
		Name:        name,
		ContentType: contentType,
		Data:        data,
		ExpiresAt:   time.Now().Add(bs.ttl),
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.entries[token] = &blobEntry{
		blob:  blob,
		timer: time.AfterFunc(bs.ttl, func() { bs.Revoke(token) }),
	}
	return blob
}

func (bs *BlobStore) Get(token string) (Blob, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	entry, ok := bs.entries[token]
	if !ok {
		return Blob{}, ErrBlobNotFound
	}
	return entry.blob, nil
}

func (bs *BlobStore) Revoke(token string) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	entry, ok := bs.entries[token]
	if !ok {
		return
	}
	entry.timer.Stop()
	delete(bs.entries, token)
}

// Len reports the number of live blobs.
func (bs *BlobStore) Len() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return len(bs.entries)
}
