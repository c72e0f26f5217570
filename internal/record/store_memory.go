package record

import (
	"context"
	"sort"
	"sync"
	"time"

	"certledger/internal/commitment"
	"certledger/internal/domain"
	"certledger/pkg/platform/sentinel"
)

// MemoryStore is the in-process Store used by tests and dev configurations.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[domain.TokenID]Record
	clock   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock injects the timestamp source for testability.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[domain.TokenID]Record),
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.TokenID]; exists {
		return sentinel.ErrConflict
	}

	now := s.clock()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.SagaState == "" {
		rec.SagaState = SagaRecorded
	}
	s.records[rec.TokenID] = rec
	return nil
}

func (s *MemoryStore) FindByToken(ctx context.Context, tokenID domain.TokenID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[tokenID]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) FindByCommitment(ctx context.Context, courseHash, subjectHash commitment.Digest) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.CourseHash == courseHash && rec.SubjectHash == subjectHash {
			return rec, nil
		}
	}
	return Record{}, sentinel.ErrNotFound
}

func (s *MemoryStore) FindByEnrollment(ctx context.Context, enrollmentID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.EnrollmentID == enrollmentID {
			return rec, nil
		}
	}
	return Record{}, sentinel.ErrNotFound
}

func (s *MemoryStore) FindByRecipient(ctx context.Context, recipientID string, filters Filters) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.records {
		if rec.RecipientID != recipientID {
			continue
		}
		if filters.CredentialType != 0 && rec.CredentialType != filters.CredentialType {
			continue
		}
		if rec.Revoked && !filters.IncludeRevoked {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, tokenID domain.TokenID, reason string, revokedAt time.Time) error {
	return s.update(tokenID, func(rec *Record) {
		rec.Revoked = true
		rec.RevocationReason = reason
		rec.RevokedAt = revokedAt
	})
}

func (s *MemoryStore) Transfer(ctx context.Context, tokenID domain.TokenID, newRecipientID string, newAddress domain.Address) error {
	return s.update(tokenID, func(rec *Record) {
		rec.RecipientID = newRecipientID
		rec.RecipientAddress = newAddress
	})
}

func (s *MemoryStore) MarkClaimed(ctx context.Context, tokenID domain.TokenID, claimedAt time.Time) error {
	return s.update(tokenID, func(rec *Record) {
		rec.ClaimedAt = claimedAt
		rec.SagaState = SagaClaimed
	})
}

func (s *MemoryStore) SetSagaState(ctx context.Context, tokenID domain.TokenID, state SagaState) error {
	return s.update(tokenID, func(rec *Record) {
		rec.SagaState = state
	})
}

func (s *MemoryStore) Anonymize(ctx context.Context, tokenID domain.TokenID) error {
	return s.update(tokenID, func(rec *Record) {
		rec.RecipientName = ""
		rec.RecipientEmail = ""
		rec.EvaluationNarrative = ""
		rec.Anonymized = true
	})
}

func (s *MemoryStore) update(tokenID domain.TokenID, mutate func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenID]
	if !ok {
		return sentinel.ErrNotFound
	}
	mutate(&rec)
	rec.UpdatedAt = s.clock()
	s.records[tokenID] = rec
	return nil
}
