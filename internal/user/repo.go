package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/storefront/internal/apperr"
	"github.com/MikeMC777/storefront/internal/database"
)

var (
	ErrNotFound     = apperr.NotFound("user not found")
	ErrAlreadyExist = apperr.Conflict("username or email already exists")
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByLogin matches either the email or the username.
	GetByLogin(ctx context.Context, login string) (*User, error)
	ExistsOther(ctx context.Context, id, username, email string) (usernameTaken, emailTaken bool, err error)
	Update(ctx context.Context, u *User, updatePassword bool) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const userColumns = `id, username, email, password_hash, is_admin, COALESCE(phone_number, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.PhoneNumber, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Persistence(err, "scan user")
	}
	return &u, nil
}

func (r *PGRepo) Create(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_admin, phone_number, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NOW(),NOW())
		RETURNING created_at, updated_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.PhoneNumber).Scan(&u.CreatedAt, &u.UpdatedAt)
	if database.IsCode(err, database.CodeUniqueViolation) {
		return ErrAlreadyExist
	}
	if err != nil {
		return apperr.Persistence(err, "create user")
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, uid))
}

func (r *PGRepo) GetByLogin(ctx context.Context, login string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE email=$1 OR username=$1
		ORDER BY (email=$1) DESC
		LIMIT 1
	`, login))
}

func (r *PGRepo) ExistsOther(ctx context.Context, id, username, email string) (bool, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	uid, _ := uuid.Parse(id)
	var userTaken, emailTaken bool
	err := r.db.QueryRow(ctx, `
		SELECT
		  EXISTS(SELECT 1 FROM users WHERE username=$2 AND id<>$1),
		  EXISTS(SELECT 1 FROM users WHERE email=$3 AND id<>$1)
	`, uid, username, email).Scan(&userTaken, &emailTaken)
	if err != nil {
		return false, false, apperr.Persistence(err, "check user uniqueness")
	}
	return userTaken, emailTaken, nil
}

func (r *PGRepo) Update(ctx context.Context, u *User, updatePassword bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	if updatePassword {
		_, err = r.db.Exec(ctx, `
			UPDATE users
			SET password_hash = $2,
			    updated_at = NOW()
			WHERE id = $1
		`, u.ID, u.PasswordHash)
	} else {
		_, err = r.db.Exec(ctx, `
			UPDATE users
			SET username = COALESCE(NULLIF($2, ''), username),
			    email    = COALESCE(NULLIF($3, ''), email),
			    phone_number = NULLIF($4, ''),
			    updated_at = NOW()
			WHERE id = $1
		`, u.ID, u.Username, u.Email, u.PhoneNumber)
	}
	if database.IsCode(err, database.CodeUniqueViolation) {
		return ErrAlreadyExist
	}
	if err != nil {
		return apperr.Persistence(err, "update user")
	}
	return nil
}
