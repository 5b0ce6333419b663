package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accountd/accountd/internal/platform/db"
	"github.com/accountd/accountd/internal/shared"
)

// Postgres error codes translated into domain errors.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgLockNotAvailable     = "55P03"
)

// Repository persists and queries user records. All FindActive*/ListActive*/
// ExistsActive* operations see only rows with is_active=true; the
// *IncludingDeleted variants bypass that filter for audit tooling.
type Repository interface {
	// WithTx runs fn against a repository bound to a single transaction.
	// Everything fn does commits or rolls back together.
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	// WithReadTx runs fn against a repository bound to a read-only
	// transaction, so multi-statement reads see one snapshot.
	WithReadTx(ctx context.Context, fn func(context.Context, Repository) error) error

	FindActiveByID(ctx context.Context, id int64) (*User, error)
	FindActiveByEmail(ctx context.Context, email string) (*User, error)
	FindActiveByUsername(ctx context.Context, username string) (*User, error)
	FindActiveByEmailOrUsername(ctx context.Context, identifier string) (*User, error)

	ExistsActiveByEmail(ctx context.Context, email string) (bool, error)
	ExistsActiveByUsername(ctx context.Context, username string) (bool, error)

	ListActive(ctx context.Context, page shared.PageRequest) ([]User, int, error)
	ListActiveAll(ctx context.Context) ([]User, error)
	SearchActive(ctx context.Context, filter Filter, page shared.PageRequest) ([]User, int, error)

	// Save inserts the record when ID is zero, assigning id and audit fields
	// and starting the version counter at 0. Otherwise it updates, but only
	// when the in-memory version still matches the stored one; a mismatch
	// fails with a concurrency conflict and writes nothing. A successful
	// update bumps the version by exactly one and refreshes updated_at.
	Save(ctx context.Context, u *User) error

	SoftDeleteByID(ctx context.Context, id int64) (int64, error)
	SoftDeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	RestoreByID(ctx context.Context, id int64) (int64, error)

	// UpdateLastLoginAt and UpdateActiveStatus write single fields directly,
	// bypassing optimistic locking: neither is business-conflict-sensitive.
	UpdateLastLoginAt(ctx context.Context, id int64, at time.Time) (int64, error)
	UpdateActiveStatus(ctx context.Context, id int64, active bool) (int64, error)

	// FindByIDWithLock acquires an exclusive row lock for the duration of the
	// enclosing transaction, waiting at most a few seconds before failing
	// with a lock timeout. Only valid inside WithTx. Deadlock-prone; use
	// sparingly.
	FindByIDWithLock(ctx context.Context, id int64) (*User, error)

	FindByIDIncludingDeleted(ctx context.Context, id int64) (*User, error)
	FindByEmailIncludingDeleted(ctx context.Context, email string) (*User, error)

	CountActive(ctx context.Context) (int64, error)
	CountActiveCreatedBetween(ctx context.Context, start, end time.Time) (int64, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) WithReadTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const userColumns = `id, email, username, password, first_name, last_name, is_active, last_login_at, created_at, updated_at, version`

func (r *repository) FindActiveByID(ctx context.Context, id int64) (*User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active = TRUE`, id)
}

func (r *repository) FindActiveByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active = TRUE`, email)
}

func (r *repository) FindActiveByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND is_active = TRUE`, username)
}

func (r *repository) FindActiveByEmailOrUsername(ctx context.Context, identifier string) (*User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE (email = $1 OR username = $1) AND is_active = TRUE`, identifier)
}

func (r *repository) ExistsActiveByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND is_active = TRUE)`, email)
}

func (r *repository) ExistsActiveByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND is_active = TRUE)`, username)
}

func (r *repository) ListActive(ctx context.Context, page shared.PageRequest) ([]User, int, error) {
	return r.SearchActive(ctx, MatchAll(), page)
}

// ListActiveAll returns every active record ordered by creation time
// descending. Unsafe on large datasets; provided for small-scale admin use.
func (r *repository) ListActiveAll(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_active = TRUE ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

func (r *repository) SearchActive(ctx context.Context, filter Filter, page shared.PageRequest) ([]User, int, error) {
	where, args, err := And(ActiveOnly(), filter).render(1)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM users WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	order := page.SortColumn
	if order == "" {
		order = "created_at"
		page.SortDesc = true
	}
	dir := "ASC"
	if page.SortDesc {
		dir = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		userColumns, where, order, dir, len(args)+1, len(args)+2)
	args = append(args, page.Size, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search users: %w", err)
	}
	records, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repository) Save(ctx context.Context, u *User) error {
	if u.ID == 0 {
		return r.insert(ctx, u)
	}
	return r.update(ctx, u)
}

func (r *repository) insert(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, username, password, first_name, last_name, is_active, last_login_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, 0)
		RETURNING id`,
		u.Email, u.Username, u.Password, textArg(u.FirstName), textArg(u.LastName),
		u.IsActive, u.LastLoginAt, now,
	).Scan(&u.ID)
	if err != nil {
		return translateSaveError(err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Version = 0
	return nil
}

// update is the explicit compare-and-increment: the WHERE clause pins both id
// and the expected version, and zero affected rows signals a conflict.
func (r *repository) update(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET email = $1, username = $2, password = $3, first_name = $4, last_name = $5,
		    is_active = $6, last_login_at = $7, updated_at = $8, version = version + 1
		WHERE id = $9 AND version = $10`,
		u.Email, u.Username, u.Password, textArg(u.FirstName), textArg(u.LastName),
		u.IsActive, u.LastLoginAt, now, u.ID, u.Version,
	)
	if err != nil {
		return translateSaveError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d at version %d was modified concurrently", shared.ErrConcurrency, u.ID, u.Version)
	}
	u.UpdatedAt = now
	u.Version++
	return nil
}

func (r *repository) SoftDeleteByID(ctx context.Context, id int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_active = FALSE WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return 0, fmt.Errorf("soft delete user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) SoftDeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_active = FALSE WHERE id = ANY($1) AND is_active = TRUE`, ids)
	if err != nil {
		return 0, fmt.Errorf("soft delete users: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) RestoreByID(ctx context.Context, id int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_active = TRUE WHERE id = $1 AND is_active = FALSE`, id)
	if err != nil {
		return 0, fmt.Errorf("restore user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) UpdateLastLoginAt(ctx context.Context, id int64, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("update last login: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) UpdateActiveStatus(ctx context.Context, id int64, active bool) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return 0, fmt.Errorf("update active status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) FindByIDWithLock(ctx context.Context, id int64) (*User, error) {
	// SET LOCAL only takes effect inside a transaction; outside one it is a
	// no-op and the lock wait falls back to server defaults.
	if _, err := r.db.Exec(ctx, `SET LOCAL lock_timeout = '5s'`); err != nil {
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active = TRUE FOR UPDATE`, id)
}

func (r *repository) FindByIDIncludingDeleted(ctx context.Context, id int64) (*User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *repository) FindByEmailIncludingDeleted(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *repository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE is_active = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (r *repository) CountActiveCreatedBetween(ctx context.Context, start, end time.Time) (int64, error) {
	if end.Before(start) {
		return 0, shared.NewValidationError("created_at", "range start must not be after range end")
	}
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE is_active = TRUE AND created_at >= $1 AND created_at <= $2`,
		start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users in range: %w", err)
	}
	return count, nil
}

func (r *repository) findOne(ctx context.Context, query string, args ...any) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return nil, fmt.Errorf("%w: row lock not acquired", shared.ErrLockTimeout)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *repository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return found, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var firstName, lastName pgtype.Text
	var lastLogin pgtype.Timestamptz
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.Password,
		&firstName, &lastName, &u.IsActive, &lastLogin,
		&u.CreatedAt, &u.UpdatedAt, &u.Version,
	)
	if err != nil {
		return nil, err
	}
	if firstName.Valid {
		v := firstName.String
		u.FirstName = &v
	}
	if lastName.Valid {
		v := lastName.String
		u.LastName = &v
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	defer rows.Close()
	var records []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		records = append(records, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	return records, nil
}

func textArg(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

// translateSaveError converts unique-constraint violations into the conflict
// kind, naming the offending field from the constraint that fired. The
// constraint is the source of truth; service-level pre-checks only narrow the
// race window. A serialization abort is what RepeatableRead raises when two
// writers race the same row instead of reporting zero affected rows, so it
// maps to the same retryable conflict as a version mismatch.
func translateSaveError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("save user: %w", err)
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return fmt.Errorf("%w: user with this email already exists", shared.ErrAlreadyExists)
		case strings.Contains(pgErr.ConstraintName, "username"):
			return fmt.Errorf("%w: user with this username already exists", shared.ErrAlreadyExists)
		default:
			return fmt.Errorf("%w: duplicate user", shared.ErrAlreadyExists)
		}
	case pgSerializationFailure:
		return fmt.Errorf("%w: user row was modified concurrently", shared.ErrConcurrency)
	}
	return fmt.Errorf("save user: %w", err)
}
