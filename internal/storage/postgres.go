package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/org/authcore/pkg/models"
)

// PostgresStore is a UserStore backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a pgx-backed connection pool and returns a ready store.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an already opened database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, created_at FROM users WHERE id = $1`, id)
	return p.scanUser(ctx, row)
}

func (p *PostgresStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, created_at FROM users WHERE email = $1`, email)
	return p.scanUser(ctx, row)
}

func (p *PostgresStore) scanUser(ctx context.Context, row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	roles, err := p.userRoles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

func (p *PostgresStore) userRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer rows.Close()
	roles := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

func (p *PostgresStore) CreateUser(ctx context.Context, email, passwordHash string, roles []string) (*models.User, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	u := &models.User{Email: email, PasswordHash: passwordHash}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (email, hashed_password) VALUES ($1, $2)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id, created_at`,
		email, passwordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	u.Roles = dedupe(roles)
	for _, name := range u.Roles {
		var roleID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO roles (name) VALUES ($1)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, name,
		).Scan(&roleID)
		if err != nil {
			return nil, fmt.Errorf("ensuring role %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			u.ID, roleID,
		); err != nil {
			return nil, fmt.Errorf("assigning role %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}
