package postgres

import (
	"context"
	"fmt"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type userRepo struct {
	q sqlx.ExtContext
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	const query = `INSERT INTO users (id, username, created_at) VALUES (:id, :username, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, user); err != nil {
		if pqCode(err) == uniqueViolation {
			return fmt.Errorf("create user %q: %w", user.Username, repository.ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, `SELECT id, username, created_at FROM users WHERE id = $1`, id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.get(ctx, `SELECT id, username, created_at FROM users WHERE username = $1`, username)
}

func (r *userRepo) get(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := sqlx.GetContext(ctx, r.q, &user, query, arg); err != nil {
		if nf := notFound(err, "user"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}
