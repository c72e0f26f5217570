package metastore

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

// MemoryStore is an in-process content-addressed store for tests and dev
// configurations. Production deployments use the Kubo-backed store; the
// wiring refuses to fall back silently when production is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	pinned map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:  make(map[string][]byte),
		pinned: make(map[string]bool),
	}
}

func (s *MemoryStore) Upload(ctx context.Context, metadata CredentialMetadata) (UploadResult, error) {
	data, err := metadata.Encode()
	if err != nil {
		return UploadResult{}, err
	}
	id, err := deriveCID(data)
	if err != nil {
		return UploadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Idempotent by construction: same bytes, same CID, same slot.
	s.blobs[id.String()] = data
	return UploadResult{CID: id.String(), SizeBytes: len(data)}, nil
}

func (s *MemoryStore) Fetch(ctx context.Context, cidStr string) ([]byte, error) {
	id, err := cid.Decode(cidStr)
	if err != nil {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	data, ok := s.blobs[id.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !verifyCID(id, data) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Pin(ctx context.Context, cidStr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[cidStr]; !ok {
		return false
	}
	s.pinned[cidStr] = true
	return true
}

// Pinned reports pin state; used by tests.
func (s *MemoryStore) Pinned(cidStr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinned[cidStr]
}

// PinnedCIDs lists every pinned CID; used by tests.
func (s *MemoryStore) PinnedCIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.pinned))
	for id := range s.pinned {
		out = append(out, id)
	}
	return out
}
