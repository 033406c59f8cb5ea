// Package media holds generated media locally and drives long-running video
// generation operations to completion.
package media

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fast3r/internal/logging"
)

// HandleScheme prefixes transient local handles.
const HandleScheme = "blob:"

// Blob is fetched media held in process memory.
type Blob struct {
	Data      []byte
	MIMEType  string
	CreatedAt time.Time
}

// Store maps transient handles to fetched bytes so results stay viewable
// without re-authenticating to the provider.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{blobs: make(map[string]Blob)}
}

// Put stores data and returns a new handle ("blob:<uuid>").
func (s *Store) Put(data []byte, mimeType string) string {
	handle := HandleScheme + uuid.NewString()
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.blobs[handle] = Blob{Data: cp, MIMEType: mimeType, CreatedAt: time.Now()}
	s.mu.Unlock()

	logging.MediaDebug("stored %d bytes (%s) as %s", len(data), mimeType, handle)
	return handle
}

// Open resolves a handle.
func (s *Store) Open(handle string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[handle]
	return b, ok
}

// Release drops a handle. Unknown handles are ignored.
func (s *Store) Release(handle string) {
	s.mu.Lock()
	delete(s.blobs, handle)
	s.mu.Unlock()
}

// Len returns the number of live handles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// WriteFile saves a handle's bytes to path.
func (s *Store) WriteFile(handle, path string) error {
	b, ok := s.Open(handle)
	if !ok {
		return fmt.Errorf("unknown media handle %q", handle)
	}
	return os.WriteFile(path, b.Data, 0644)
}

// EncodeDataURI renders data as a self-contained data URI.
func EncodeDataURI(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI parses a base64 data URI back into bytes and MIME type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("data URI has no payload")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URI: %w", err)
	}
	return data, mimeType, nil
}
