package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"certledger/internal/commitment"
	"certledger/internal/domain"
	"certledger/pkg/platform/sentinel"
)

// PostgresStore persists credential records in PostgreSQL. The primary key on
// token_id is the idempotency guard for concurrent saga retries.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the credential_records table if missing. Kept here
// instead of a migration tool because this service owns exactly one table.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS credential_records (
			token_id             BIGINT PRIMARY KEY,
			enrollment_id        TEXT NOT NULL,
			recipient_id         TEXT NOT NULL,
			recipient_name       TEXT NOT NULL,
			recipient_email      TEXT NOT NULL,
			recipient_address    TEXT NOT NULL,
			course_id            TEXT NOT NULL,
			course_title         TEXT NOT NULL,
			course_hash          TEXT NOT NULL,
			subject_hash         TEXT NOT NULL,
			evaluation_hash      TEXT NOT NULL,
			evaluation_score     DOUBLE PRECISION NOT NULL,
			evaluation_narrative TEXT NOT NULL DEFAULT '',
			completed_at         TIMESTAMPTZ NOT NULL,
			credential_type      SMALLINT NOT NULL,
			is_soulbound         BOOLEAN NOT NULL,
			valid_until          TIMESTAMPTZ,
			issuer_name          TEXT NOT NULL,
			issuer_address       TEXT NOT NULL,
			metadata_cid         TEXT NOT NULL,
			tx_hash              TEXT NOT NULL,
			block_number         BIGINT NOT NULL,
			consent_at           TIMESTAMPTZ,
			retention_class      TEXT NOT NULL DEFAULT '',
			revoked              BOOLEAN NOT NULL DEFAULT FALSE,
			revocation_reason    TEXT NOT NULL DEFAULT '',
			revoked_at           TIMESTAMPTZ,
			claimed_at           TIMESTAMPTZ,
			anonymized           BOOLEAN NOT NULL DEFAULT FALSE,
			saga_state           TEXT NOT NULL,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS credential_records_commitment
			ON credential_records (course_hash, subject_hash);
		CREATE INDEX IF NOT EXISTS credential_records_recipient
			ON credential_records (recipient_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS credential_records_enrollment
			ON credential_records (enrollment_id);
	`)
	if err != nil {
		return fmt.Errorf("ensure credential_records schema: %w", err)
	}
	return nil
}

const recordColumns = `
	token_id, enrollment_id,
	recipient_id, recipient_name, recipient_email, recipient_address,
	course_id, course_title,
	course_hash, subject_hash, evaluation_hash,
	evaluation_score, evaluation_narrative, completed_at,
	credential_type, is_soulbound, valid_until,
	issuer_name, issuer_address,
	metadata_cid, tx_hash, block_number,
	consent_at, retention_class,
	revoked, revocation_reason, revoked_at,
	claimed_at, anonymized, saga_state,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	if rec.SagaState == "" {
		rec.SagaState = SagaRecorded
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credential_records (
			token_id, enrollment_id,
			recipient_id, recipient_name, recipient_email, recipient_address,
			course_id, course_title,
			course_hash, subject_hash, evaluation_hash,
			evaluation_score, evaluation_narrative, completed_at,
			credential_type, is_soulbound, valid_until,
			issuer_name, issuer_address,
			metadata_cid, tx_hash, block_number,
			consent_at, retention_class, saga_state
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)`,
		int64(rec.TokenID), rec.EnrollmentID,
		rec.RecipientID, rec.RecipientName, rec.RecipientEmail, string(rec.RecipientAddress),
		rec.CourseID, rec.CourseTitle,
		rec.CourseHash.Hex(), rec.SubjectHash.Hex(), rec.EvaluationHash.Hex(),
		rec.EvaluationScore, rec.EvaluationNarrative, rec.CompletedAt,
		int16(rec.CredentialType), rec.IsSoulbound, nullableTime(rec.ValidUntil),
		rec.IssuerName, string(rec.IssuerAddress),
		rec.MetadataCID, rec.TxHash, int64(rec.BlockNumber),
		nullableTime(rec.ConsentAt), rec.RetentionClass, string(rec.SagaState),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert credential record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, tokenID domain.TokenID) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM credential_records WHERE token_id = $1`,
		int64(tokenID))
	return scanRecord(row)
}

func (s *PostgresStore) FindByCommitment(ctx context.Context, courseHash, subjectHash commitment.Digest) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM credential_records
		 WHERE course_hash = $1 AND subject_hash = $2
		 ORDER BY created_at DESC LIMIT 1`,
		courseHash.Hex(), subjectHash.Hex())
	return scanRecord(row)
}

func (s *PostgresStore) FindByEnrollment(ctx context.Context, enrollmentID string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM credential_records
		 WHERE enrollment_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		enrollmentID)
	return scanRecord(row)
}

func (s *PostgresStore) FindByRecipient(ctx context.Context, recipientID string, filters Filters) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM credential_records WHERE recipient_id = $1`
	args := []any{recipientID}

	if filters.CredentialType != 0 {
		args = append(args, int16(filters.CredentialType))
		query += fmt.Sprintf(" AND credential_type = $%d", len(args))
	}
	if !filters.IncludeRevoked {
		query += " AND NOT revoked"
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credential records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Revoke(ctx context.Context, tokenID domain.TokenID, reason string, revokedAt time.Time) error {
	return s.exec(ctx, `
		UPDATE credential_records
		SET revoked = TRUE, revocation_reason = $2, revoked_at = $3, updated_at = now()
		WHERE token_id = $1`,
		int64(tokenID), reason, revokedAt)
}

func (s *PostgresStore) Transfer(ctx context.Context, tokenID domain.TokenID, newRecipientID string, newAddress domain.Address) error {
	return s.exec(ctx, `
		UPDATE credential_records
		SET recipient_id = $2, recipient_address = $3, updated_at = now()
		WHERE token_id = $1`,
		int64(tokenID), newRecipientID, string(newAddress))
}

func (s *PostgresStore) MarkClaimed(ctx context.Context, tokenID domain.TokenID, claimedAt time.Time) error {
	return s.exec(ctx, `
		UPDATE credential_records
		SET claimed_at = $2, saga_state = $3, updated_at = now()
		WHERE token_id = $1`,
		int64(tokenID), claimedAt, string(SagaClaimed))
}

func (s *PostgresStore) SetSagaState(ctx context.Context, tokenID domain.TokenID, state SagaState) error {
	return s.exec(ctx, `
		UPDATE credential_records
		SET saga_state = $2, updated_at = now()
		WHERE token_id = $1`,
		int64(tokenID), string(state))
}

func (s *PostgresStore) Anonymize(ctx context.Context, tokenID domain.TokenID) error {
	return s.exec(ctx, `
		UPDATE credential_records
		SET recipient_name = '', recipient_email = '', evaluation_narrative = '',
		    anonymized = TRUE, updated_at = now()
		WHERE token_id = $1`,
		int64(tokenID))
}

func (s *PostgresStore) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update credential record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec                                  Record
		tokenID, blockNumber                 int64
		recipientAddr, issuerAddr, sagaState string
		courseHash, subjectHash, evalHash    string
		credType                             int16
		validUntil, consentAt                *time.Time
		revokedAt, claimedAt                 *time.Time
	)

	err := row.Scan(
		&tokenID, &rec.EnrollmentID,
		&rec.RecipientID, &rec.RecipientName, &rec.RecipientEmail, &recipientAddr,
		&rec.CourseID, &rec.CourseTitle,
		&courseHash, &subjectHash, &evalHash,
		&rec.EvaluationScore, &rec.EvaluationNarrative, &rec.CompletedAt,
		&credType, &rec.IsSoulbound, &validUntil,
		&rec.IssuerName, &issuerAddr,
		&rec.MetadataCID, &rec.TxHash, &blockNumber,
		&consentAt, &rec.RetentionClass,
		&rec.Revoked, &rec.RevocationReason, &revokedAt,
		&claimedAt, &rec.Anonymized, &sagaState,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, sentinel.ErrNotFound
		}
		return Record{}, fmt.Errorf("scan credential record: %w", err)
	}

	rec.TokenID = domain.TokenID(tokenID)
	rec.BlockNumber = uint64(blockNumber)
	rec.RecipientAddress = domain.Address(recipientAddr)
	rec.IssuerAddress = domain.Address(issuerAddr)
	rec.CredentialType = domain.CredentialType(credType)
	rec.SagaState = SagaState(sagaState)

	if d, ok := commitment.FromHex(courseHash); ok {
		rec.CourseHash = d
	}
	if d, ok := commitment.FromHex(subjectHash); ok {
		rec.SubjectHash = d
	}
	if d, ok := commitment.FromHex(evalHash); ok {
		rec.EvaluationHash = d
	}

	if validUntil != nil {
		rec.ValidUntil = *validUntil
	}
	if consentAt != nil {
		rec.ConsentAt = *consentAt
	}
	if revokedAt != nil {
		rec.RevokedAt = *revokedAt
	}
	if claimedAt != nil {
		rec.ClaimedAt = *claimedAt
	}
	return rec, nil
}
