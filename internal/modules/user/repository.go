package user

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/heartguard/heartguard-api/internal/database"
)

// Repository is the credential store for user records.
// Lookups return ErrNotFound when no row matches.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)

	UpdateDetails(ctx context.Context, id string, in UpdateUserDetailsInput) (*User, error)
	UpdatePassword(ctx context.Context, id string, newPasswordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	MarkPhoneVerified(ctx context.Context, id string) error
}

// repository implements the Repository interface using pgx and squirrel.
type repository struct {
	db   database.DBTX
	psql squirrel.StatementBuilderType
}

func NewRepository(db database.DBTX) Repository {
	return &repository{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}
