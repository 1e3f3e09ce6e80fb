package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ UserStore = (*PGStore)(nil)

// PGStore implements UserStore using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const selectUser = `select id, user_name, full_name, password, account_non_expired, account_non_locked,
	credentials_non_expired, enabled, created_at from users where user_name = $1`

const selectUserRoles = `select p.description from user_permission up
	join permission p on p.id = up.id_permission
	where up.id_user = $1 order by p.description`

func (s *PGStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	const op = "auth.PGStore.FindByUsername"

	var u User
	err := s.db.QueryRowContext(ctx, selectUser, username).Scan(
		&u.ID, &u.Username, &u.FullName, &u.PasswordHash,
		&u.AccountNonExpired, &u.AccountNonLocked, &u.CredentialsNonExpired, &u.Enabled,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx, selectUserRoles, u.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: roles: %w", op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("%s: roles: %w", op, err)
		}
		u.Roles = append(u.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: roles: %w", op, err)
	}
	return &u, nil
}

// Create inserts the user and links its roles in one transaction. Permissions that
// do not exist yet are created.
func (s *PGStore) Create(ctx context.Context, u *User) error {
	const op = "auth.PGStore.Create"

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`insert into users(id, user_name, full_name, password, account_non_expired, account_non_locked,
			credentials_non_expired, enabled) values($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Username, u.FullName, u.PasswordHash,
		u.AccountNonExpired, u.AccountNonLocked, u.CredentialsNonExpired, u.Enabled,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%s: insert user: %w", op, err)
	}

	for _, role := range normalizeRoles(u.Roles) {
		if _, err := tx.ExecContext(ctx,
			`insert into permission(description) values($1) on conflict (description) do nothing`, role,
		); err != nil {
			return fmt.Errorf("%s: ensure permission %q: %w", op, role, err)
		}
		if _, err := tx.ExecContext(ctx,
			`insert into user_permission(id_user, id_permission)
				select $1, id from permission where description = $2`, u.ID, role,
		); err != nil {
			return fmt.Errorf("%s: grant %q: %w", op, role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return strings.Contains(err.Error(), "duplicate key")
}
