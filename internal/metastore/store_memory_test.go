package metastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/domain"
	domainerrors "certledger/pkg/domain-errors"
)

func sampleMetadata() CredentialMetadata {
	return CredentialMetadata{
		CredentialType:      domain.TypeCertificate,
		CourseID:            "course-golang-101",
		CourseTitle:         "Go Fundamentals",
		RecipientName:       "Ada Lovelace",
		RecipientEmail:      "ada@example.com",
		EvaluationScore:     92.5,
		EvaluationNarrative: "Strong grasp of concurrency patterns.",
		CompletedAt:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		IssuerName:          "Acme Corp L&D",
		IssuedAt:            time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestUploadFetchRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	res, err := store.Upload(ctx, sampleMetadata())
	require.NoError(t, err)
	require.NotEmpty(t, res.CID)
	assert.Positive(t, res.SizeBytes)

	data, err := store.Fetch(ctx, res.CID)
	require.NoError(t, err)
	assert.Len(t, data, res.SizeBytes)

	want, err := sampleMetadata().Encode()
	require.NoError(t, err)
	assert.Equal(t, want, data, "fetched bytes must be identical to the uploaded content")
}

func TestUploadIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Upload(ctx, sampleMetadata())
	require.NoError(t, err)
	second, err := store.Upload(ctx, sampleMetadata())
	require.NoError(t, err)
	assert.Equal(t, first.CID, second.CID, "same metadata must address the same content")
}

func TestDifferentMetadataDifferentCID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Upload(ctx, sampleMetadata())
	require.NoError(t, err)

	other := sampleMetadata()
	other.EvaluationScore = 71.0
	second, err := store.Upload(ctx, other)
	require.NoError(t, err)

	assert.NotEqual(t, first.CID, second.CID)
}

func TestFetchUnknownCID(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Fetch(context.Background(), "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Fetch(context.Background(), "not-a-cid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPinBestEffort(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	res, err := store.Upload(ctx, sampleMetadata())
	require.NoError(t, err)

	assert.True(t, store.Pin(ctx, res.CID))
	assert.True(t, store.Pinned(res.CID))
	assert.False(t, store.Pin(ctx, "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy"))
}

func TestUploadValidatesSchema(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CredentialMetadata)
	}{
		{"missing recipient", func(m *CredentialMetadata) { m.RecipientName, m.RecipientEmail = "", "" }},
		{"missing course", func(m *CredentialMetadata) { m.CourseID = "" }},
		{"bad type", func(m *CredentialMetadata) { m.CredentialType = 9 }},
		{"zero completion", func(m *CredentialMetadata) { m.CompletedAt = time.Time{} }},
		{"certificate without narrative", func(m *CredentialMetadata) { m.EvaluationNarrative = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := sampleMetadata()
			tc.mutate(&m)
			_, err := store.Upload(ctx, m)
			assert.True(t, domainerrors.Is(err, domainerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestBadgeMayOmitNarrative(t *testing.T) {
	store := NewMemoryStore()
	m := sampleMetadata()
	m.CredentialType = domain.TypeBadge
	m.EvaluationNarrative = ""

	_, err := store.Upload(context.Background(), m)
	assert.NoError(t, err)
}
