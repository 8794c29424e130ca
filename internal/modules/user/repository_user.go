package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var userColumns = []string{
	"id", "name", "email", "phone", "password_hash", "role", "profile_picture",
	"email_verified", "phone_verified", "created_at", "updated_at",
}

// Create inserts a new user record. A duplicate email yields ErrEmailExists.
func (r *repository) Create(ctx context.Context, user *User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = RoleUser
	}

	query, args, err := r.psql.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Name, user.Email, user.Phone, user.PasswordHash, user.Role, user.ProfilePicture,
			user.EmailVerified, user.PhoneVerified, user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err = r.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailExists.WithCause(err)
		}
		return err
	}
	return nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, squirrel.Expr("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (r *repository) FindByPhone(ctx context.Context, phone string) (*User, error) {
	return r.findOne(ctx, squirrel.Eq{"phone": phone})
}

func (r *repository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

// UpdateDetails applies the non-nil fields of in and returns the updated user.
func (r *repository) UpdateDetails(ctx context.Context, id string, in UpdateUserDetailsInput) (*User, error) {
	q := r.psql.Update("users").
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", "))
	if in.Name != nil {
		q = q.Set("name", *in.Name)
	}
	if in.ProfilePicture != nil {
		q = q.Set("profile_picture", *in.ProfilePicture)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var user User
	if err := pgxscan.Get(ctx, r.db, &user, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound.WithCause(err)
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) UpdatePassword(ctx context.Context, id string, newPasswordHash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": newPasswordHash})
}

func (r *repository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]any{"email_verified": true})
}

func (r *repository) MarkPhoneVerified(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]any{"phone_verified": true})
}

func (r *repository) update(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	query, args, err := r.psql.Update("users").
		SetMap(fields).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) findOne(ctx context.Context, condition squirrel.Sqlizer) (*User, error) {
	query, args, err := r.psql.Select(userColumns...).
		From("users").
		Where(condition).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var user User
	if err := pgxscan.Get(ctx, r.db, &user, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound.WithCause(err)
		}
		return nil, err
	}
	return &user, nil
}
