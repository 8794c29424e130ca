package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/heartguard/heartguard-api/internal/database"
	"github.com/jackc/pgx/v5"
)

var (
	codeColumns  = []string{"id", "user_id", "identifier", "purpose", "channel", "code_hash", "attempts", "max_attempts", "expires_at", "consumed_at", "created_at"}
	resetColumns = []string{"id", "user_id", "token_hash", "expires_at", "consumed_at", "created_at"}
)

// PostgresStore is the Store backed by the verification_codes and
// password_reset_tokens tables.
type PostgresStore struct {
	db   database.TxBeginner
	psql squirrel.StatementBuilderType
}

func NewPostgresStore(db database.TxBeginner) *PostgresStore {
	return &PostgresStore{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ReplaceCode serializes issuers of the same (identifier, purpose) on an
// advisory lock, retires every active code of the pair and inserts c.
func (s *PostgresStore) ReplaceCode(ctx context.Context, c *Code) error {
	if c.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		c.ID = id.String()
	}

	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.lock(ctx, tx, "code:"+string(c.Purpose)+":"+c.Identifier); err != nil {
			return err
		}

		sql, args, err := s.psql.Update("verification_codes").
			Set("consumed_at", c.CreatedAt).
			Where(squirrel.Eq{"identifier": c.Identifier, "purpose": string(c.Purpose)}).
			Where("consumed_at IS NULL").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("retire active codes: %w", err)
		}

		sql, args, err = s.psql.Insert("verification_codes").
			Columns(codeColumns...).
			Values(c.ID, c.UserID, c.Identifier, string(c.Purpose), string(c.Channel), c.CodeHash, c.Attempts, c.MaxAttempts, c.ExpiresAt, c.ConsumedAt, c.CreatedAt).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert code: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ConsumeCode(ctx context.Context, identifier string, purpose Purpose, codeHash string, now time.Time) (*Code, error) {
	sql, args, err := s.psql.Update("verification_codes").
		Set("consumed_at", now).
		Where(squirrel.Eq{"identifier": identifier, "purpose": string(purpose), "code_hash": codeHash}).
		Where("consumed_at IS NULL").
		Where(squirrel.Gt{"expires_at": now}).
		Where("attempts < max_attempts").
		Suffix("RETURNING " + strings.Join(codeColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	var c Code
	if err := pgxscan.Get(ctx, s.db, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) RecordFailedAttempt(ctx context.Context, identifier string, purpose Purpose, now time.Time) error {
	sql, args, err := s.psql.Update("verification_codes").
		Set("attempts", squirrel.Expr("attempts + 1")).
		Where(squirrel.Eq{"identifier": identifier, "purpose": string(purpose)}).
		Where("consumed_at IS NULL").
		Where(squirrel.Gt{"expires_at": now}).
		Where("attempts < max_attempts").
		ToSql()
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindCode(ctx context.Context, identifier string, purpose Purpose, codeHash string) (*Code, error) {
	sql, args, err := s.psql.Select(codeColumns...).
		From("verification_codes").
		Where(squirrel.Eq{"identifier": identifier, "purpose": string(purpose), "code_hash": codeHash}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var c Code
	if err := pgxscan.Get(ctx, s.db, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ReplaceResetToken retires the user's active reset tokens and inserts t.
func (s *PostgresStore) ReplaceResetToken(ctx context.Context, t *ResetToken) error {
	if t.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		t.ID = id.String()
	}

	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.lock(ctx, tx, "reset:"+t.UserID); err != nil {
			return err
		}

		sql, args, err := s.psql.Update("password_reset_tokens").
			Set("consumed_at", t.CreatedAt).
			Where(squirrel.Eq{"user_id": t.UserID}).
			Where("consumed_at IS NULL").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("retire active reset tokens: %w", err)
		}

		sql, args, err = s.psql.Insert("password_reset_tokens").
			Columns(resetColumns...).
			Values(t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.ConsumedAt, t.CreatedAt).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert reset token: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error) {
	sql, args, err := s.psql.Update("password_reset_tokens").
		Set("consumed_at", now).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Where("consumed_at IS NULL").
		Where(squirrel.Gt{"expires_at": now}).
		Suffix("RETURNING " + strings.Join(resetColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	var t ResetToken
	if err := pgxscan.Get(ctx, s.db, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) FindResetToken(ctx context.Context, tokenHash string) (*ResetToken, error) {
	sql, args, err := s.psql.Select(resetColumns...).
		From("password_reset_tokens").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var t ResetToken
	if err := pgxscan.Get(ctx, s.db, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) lock(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}
