package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Ledger records every issued refresh token and every revoked one.
type Ledger interface {
	// RecordOutstanding stores a freshly minted refresh token. It fails with
	// ErrDuplicateToken when the JTI is already present.
	RecordOutstanding(ctx context.Context, t *OutstandingToken) error

	// Blacklist revokes a previously recorded JTI and reports whether this
	// call made the transition. Revoking an already blacklisted JTI returns
	// false with no error; an unknown JTI yields ErrNotFound.
	Blacklist(ctx context.Context, jti string) (bool, error)

	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// Lookup returns the outstanding record with its blacklist timestamp,
	// or ErrNotFound.
	Lookup(ctx context.Context, jti string) (*OutstandingToken, error)
}

type PostgresLedger struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db, now: time.Now}
}

const (
	qOutstandingInsert = `
INSERT INTO outstanding_tokens (jti, user_id, username, issued_at, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	// One round trip: insert-if-absent for a known JTI, then report whether
	// the JTI was ever issued and whether this statement inserted the row.
	qBlacklist = `
WITH ins AS (
	INSERT INTO blacklisted_tokens (jti, blacklisted_at)
	SELECT jti, $2 FROM outstanding_tokens WHERE jti = $1
	ON CONFLICT (jti) DO NOTHING
	RETURNING jti
)
SELECT EXISTS (SELECT 1 FROM outstanding_tokens WHERE jti = $1),
       EXISTS (SELECT 1 FROM ins)`

	qIsBlacklisted = `
SELECT EXISTS (SELECT 1 FROM blacklisted_tokens WHERE jti = $1)`

	qLookup = `
SELECT o.jti, o.user_id, o.username, o.issued_at, o.expires_at, o.created_at, b.blacklisted_at
FROM outstanding_tokens o
LEFT JOIN blacklisted_tokens b ON b.jti = o.jti
WHERE o.jti = $1`
)

func (l *PostgresLedger) RecordOutstanding(ctx context.Context, t *OutstandingToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = l.now().UTC()
	}
	_, err := l.db.ExecContext(ctx, qOutstandingInsert,
		t.JTI, t.UserID, t.Username, t.IssuedAt, t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateToken
		}
		return fmt.Errorf("insert outstanding token: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Blacklist(ctx context.Context, jti string) (bool, error) {
	var issued, inserted bool
	if err := l.db.QueryRowContext(ctx, qBlacklist, jti, l.now().UTC()).Scan(&issued, &inserted); err != nil {
		return false, fmt.Errorf("blacklist token: %w", err)
	}
	if !issued {
		return false, ErrNotFound
	}
	return inserted, nil
}

func (l *PostgresLedger) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var found bool
	if err := l.db.QueryRowContext(ctx, qIsBlacklisted, jti).Scan(&found); err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return found, nil
}

func (l *PostgresLedger) Lookup(ctx context.Context, jti string) (*OutstandingToken, error) {
	var t OutstandingToken
	var blacklistedAt sql.NullTime
	err := l.db.QueryRowContext(ctx, qLookup, jti).Scan(
		&t.JTI, &t.UserID, &t.Username, &t.IssuedAt, &t.ExpiresAt, &t.CreatedAt, &blacklistedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if blacklistedAt.Valid {
		at := blacklistedAt.Time
		t.BlacklistedAt = &at
	}
	return &t, nil
}
