package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/thurmanmarka/fujiglide/internal/model"
)

// AdminRepo persists admin accounts for the external auth collaborator.
// The core only stores rows; session and token mechanics live elsewhere.
type AdminRepo struct {
	pool *pgxpool.Pool
}

// Create inserts an admin, hashing the plaintext password with bcrypt.
func (r *AdminRepo) Create(ctx context.Context, username, email, password string) (*model.Admin, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	a := &model.Admin{Username: username, Email: email, PasswordHash: string(hash)}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO admins (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		username, email, a.PasswordHash)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "insert admin")
	}
	return a, nil
}

// ByUsername fetches one admin.
func (r *AdminRepo) ByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM admins WHERE username = $1`, username).
		Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "query admin")
	}
	return &a, nil
}

// VerifyPassword checks a plaintext password against the stored hash.
func (r *AdminRepo) VerifyPassword(admin *model.Admin, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) == nil
}
