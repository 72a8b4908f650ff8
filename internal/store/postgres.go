package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cheerpup/apps/backend/internal/domain"
)

const pgUniqueViolation = "23505"

// Postgres stores each user as one row: login columns for lookups and
// uniqueness, the rest of the aggregate as a jsonb document.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Create(ctx context.Context, user *domain.User) error {
	user.Version = 1
	document, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user document: %w", err)
	}
	_, err = p.pool.Exec(
		ctx,
		`INSERT INTO "User" (id, email, "phoneNumber", "passwordHash", document, version, "createdAt", "updatedAt")
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		document,
		user.Version,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		user.Version = 0
		return mapPGError(err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, id string) (*domain.User, error) {
	row := p.pool.QueryRow(
		ctx,
		`SELECT id, "passwordHash", document, version, "createdAt", "updatedAt"
		 FROM "User"
		 WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func (p *Postgres) FindByLogin(ctx context.Context, email, phone *string) (*domain.User, error) {
	if email == nil && phone == nil {
		return nil, ErrNotFound
	}
	column, value := `"phoneNumber"`, phone
	if email != nil {
		column, value = "email", email
	}
	row := p.pool.QueryRow(
		ctx,
		`SELECT id, "passwordHash", document, version, "createdAt", "updatedAt"
		 FROM "User"
		 WHERE `+column+` = $1
		 LIMIT 1`,
		*value,
	)
	return scanUser(row)
}

func (p *Postgres) Save(ctx context.Context, user *domain.User) error {
	next := user.Clone()
	next.Version = user.Version + 1
	document, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode user document: %w", err)
	}
	tag, err := p.pool.Exec(
		ctx,
		`UPDATE "User"
		 SET email = $2,
		     "phoneNumber" = $3,
		     "passwordHash" = $4,
		     document = $5,
		     version = version + 1,
		     "updatedAt" = $6
		 WHERE id = $1 AND version = $7`,
		user.ID,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		document,
		user.UpdatedAt,
		user.Version,
	)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM "User" WHERE id = $1)`, user.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	user.Version = next.Version
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		id           string
		passwordHash string
		document     []byte
		version      int64
		createdAt    time.Time
		updatedAt    time.Time
	)
	if err := row.Scan(&id, &passwordHash, &document, &version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var user domain.User
	if err := json.Unmarshal(document, &user); err != nil {
		return nil, fmt.Errorf("decode user document %s: %w", id, err)
	}
	user.ID = id
	user.PasswordHash = passwordHash
	user.Version = version
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	user.EnsureCollections()
	return &user, nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

// ValidateRuntimeSchema fails startup when the user table is missing a column
// the Postgres driver depends on.
func ValidateRuntimeSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	for _, column := range []string{"id", "email", "phoneNumber", "passwordHash", "document", "version", "createdAt", "updatedAt"} {
		ok, err := columnExists(ctx, pool, "User", column)
		if err != nil {
			return fmt.Errorf("failed checking schema for User.%s: %w", column, err)
		}
		if !ok {
			return fmt.Errorf("required column User.%s is missing; apply migrations/0001_init.sql", column)
		}
	}
	return nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, table, column string) (bool, error) {
	var exists bool
	err := pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND table_name = $1
		     AND column_name = $2
		 )`,
		table,
		column,
	).Scan(&exists)
	return exists, err
}
