// Package pgstore provides a PostgreSQL-backed token.Store over database/sql
// (pgx stdlib driver), with the schema managed by embedded goose migrations.
//
// Rotation runs inside a single transaction: the presented row is locked with
// SELECT ... FOR UPDATE, so concurrent rotations bearing the same secret
// serialize on the row lock and every loser re-reads the winner's committed
// status=used, landing in the reuse branch. Family cascades execute in the
// same transaction and are therefore committed before Rotate returns.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hexveil/goSessions/internal/dbx"
	"github.com/hexveil/goSessions/token"
	"github.com/hexveil/goSessions/token/pgstore/migrations"
)

// Store implements token.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store bound to an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL via the pgx stdlib driver and returns a store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return NewStore(db), nil
}

// DB exposes the underlying handle for lifecycle management.
func (s *Store) DB() *sql.DB {
	return s.db
}

// RunMigrations applies the embedded goose migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return err
	}

	return nil
}

const recordColumns = `id, user_id, device_id, device_name, platform, token_hash, family_id,
		status, created_at, expires_at, used_at, revoked_at, revoked_reason, last_used_at`

// Create inserts a family root or rotation successor row.
func (s *Store) Create(ctx context.Context, rec *token.Record) error {
	return createRecord(ctx, s.db, rec)
}

func createRecord(ctx context.Context, db dbx.DBTX, rec *token.Record) error {
	query := `
		INSERT INTO refresh_tokens
			(id, user_id, device_id, device_name, platform, token_hash, family_id, status, created_at, expires_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.DeviceID,
		rec.DeviceName,
		rec.Platform,
		hex.EncodeToString(rec.TokenHash[:]),
		rec.FamilyID,
		string(rec.Status),
		rec.CreatedAt.UTC(),
		rec.ExpiresAt.UTC(),
		rec.LastUsedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	return nil
}

// Rotate runs the rotation verdict for the row matching tokenHash.
//
// Verdicts are surfaced through verdictErr rather than returned from the
// transaction closure: a reuse or device-mismatch cascade must be committed,
// not rolled back, even though the call itself fails.
func (s *Store) Rotate(ctx context.Context, tokenHash [32]byte, deviceID string, successor token.Successor, now time.Time) (*token.Record, error) {
	var (
		next       *token.Record
		verdictErr error
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			SELECT ` + recordColumns + `
			FROM refresh_tokens
			WHERE token_hash = $1
			FOR UPDATE
		`
		rec, err := scanRecord(tx.QueryRowContext(ctx, query, hex.EncodeToString(tokenHash[:])))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				verdictErr = token.ErrNotFound
				return nil
			}
			return err
		}

		if rec.DeviceID != deviceID {
			if err := revokeFamily(ctx, tx, rec.FamilyID, token.ReasonDeviceMismatch, now); err != nil {
				return err
			}
			verdictErr = token.ErrDeviceMismatch
			return nil
		}

		switch {
		case rec.Status == token.StatusUsed:
			if err := revokeFamily(ctx, tx, rec.FamilyID, token.ReasonReuseDetected, now); err != nil {
				return err
			}
			verdictErr = token.ErrReuseDetected
			return nil
		case rec.Status == token.StatusRevoked:
			verdictErr = token.ErrRevoked
			return nil
		case rec.Expired(now):
			verdictErr = token.ErrExpired
			return nil
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE refresh_tokens
			SET status = 'used', used_at = $2, last_used_at = $2
			WHERE id = $1 AND status = 'active'
		`, rec.ID, now.UTC())
		if err != nil {
			return fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
		}
		if affected != 1 {
			// Lost the conditional update despite the row lock. Treat the
			// race exactly like a replay.
			if err := revokeFamily(ctx, tx, rec.FamilyID, token.ReasonReuseDetected, now); err != nil {
				return err
			}
			verdictErr = token.ErrReuseDetected
			return nil
		}

		next = &token.Record{
			ID:         successor.ID,
			UserID:     rec.UserID,
			DeviceID:   rec.DeviceID,
			DeviceName: rec.DeviceName,
			Platform:   rec.Platform,
			TokenHash:  successor.TokenHash,
			FamilyID:   rec.FamilyID,
			Status:     token.StatusActive,
			CreatedAt:  now,
			ExpiresAt:  successor.ExpiresAt,
			LastUsedAt: now,
		}
		return createRecord(ctx, tx, next)
	})
	if err != nil {
		return nil, err
	}
	if verdictErr != nil {
		return nil, verdictErr
	}
	return next, nil
}

func revokeFamily(ctx context.Context, db dbx.DBTX, familyID, reason string, now time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET status = 'revoked', revoked_at = $2, revoked_reason = $3
		WHERE family_id = $1 AND status <> 'revoked'
	`
	if _, err := db.ExecContext(ctx, query, familyID, now.UTC(), reason); err != nil {
		return fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	return nil
}

// ListActive returns the user's active, unexpired rows, most recently used
// first.
func (s *Store) ListActive(ctx context.Context, userID string, now time.Time) ([]*token.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND status = 'active' AND expires_at > $2
		ORDER BY COALESCE(last_used_at, created_at) DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []*token.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	return records, nil
}

// RevokeDevice revokes the user's active rows bound to deviceID.
func (s *Store) RevokeDevice(ctx context.Context, userID, deviceID, reason string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET status = 'revoked', revoked_at = $3, revoked_reason = $4
		WHERE user_id = $1 AND device_id = $2 AND status = 'active'
	`
	return s.revoke(ctx, query, userID, deviceID, now, reason)
}

// RevokeAllExcept revokes the user's active rows on every device except
// exceptDeviceID. Device-bound rows always carry a non-empty device_id, so an
// empty exceptDeviceID revokes everything.
func (s *Store) RevokeAllExcept(ctx context.Context, userID, exceptDeviceID, reason string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET status = 'revoked', revoked_at = $3, revoked_reason = $4
		WHERE user_id = $1 AND device_id <> $2 AND status = 'active'
	`
	return s.revoke(ctx, query, userID, exceptDeviceID, now, reason)
}

func (s *Store) revoke(ctx context.Context, query, userID, deviceID string, now time.Time, reason string) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, userID, deviceID, now.UTC(), reason)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	return affected, nil
}

// PurgeExpired removes retired rows whose expiry lies before the cutoff.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE status <> 'active' AND expires_at < $1
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*token.Record, error) {
	var (
		rec           token.Record
		hashHex       string
		status        string
		usedAt        sql.NullTime
		revokedAt     sql.NullTime
		revokedReason sql.NullString
		lastUsedAt    sql.NullTime
	)

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.DeviceID,
		&rec.DeviceName,
		&rec.Platform,
		&hashHex,
		&rec.FamilyID,
		&status,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&usedAt,
		&revokedAt,
		&revokedReason,
		&lastUsedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}

	hash, err := hex.DecodeString(hashHex)
	if err != nil || len(hash) != len(rec.TokenHash) {
		return nil, fmt.Errorf("%w: corrupt token_hash %q", token.ErrStoreUnavailable, hashHex)
	}
	copy(rec.TokenHash[:], hash)

	rec.Status = token.Status(status)
	if usedAt.Valid {
		rec.UsedAt = usedAt.Time
	}
	if revokedAt.Valid {
		rec.RevokedAt = revokedAt.Time
	}
	if revokedReason.Valid {
		rec.RevokedReason = revokedReason.String
	}
	if lastUsedAt.Valid {
		rec.LastUsedAt = lastUsedAt.Time
	}

	return &rec, nil
}
