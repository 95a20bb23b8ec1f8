// Package userdb stores users in SQLite.
package userdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/minus-twelve/warden/internal/logutil"
	"github.com/minus-twelve/warden/types"
)

const userColumns = "id, email, hashed_password, first_name, last_name, session_id, reset_token, created_at, updated_at"

// updatable lists the columns UpdateUser may touch.
var updatable = map[string]struct{}{
	"email":           {},
	"hashed_password": {},
	"first_name":      {},
	"last_name":       {},
	"session_id":      {},
	"reset_token":     {},
}

// Filter selects users by the non-empty fields, which are ANDed together.
type Filter struct {
	ID         string
	Email      string
	SessionID  string
	ResetToken string
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any
	add := func(column, value string) {
		if value != "" {
			clauses = append(clauses, column+" = ?")
			args = append(args, value)
		}
	}
	add("id", f.ID)
	add("email", f.Email)
	add("session_id", f.SessionID)
	add("reset_token", f.ResetToken)
	return strings.Join(clauses, " AND "), args
}

type DB struct {
	db  *sql.DB
	log logr.Logger
}

// Open opens the SQLite database at path and brings its schema up to date.
func Open(ctx context.Context, path string, logger logr.Logger) (*DB, error) {
	logger = logger.WithName("userdb")

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, logutil.LogAndWrapErr(logger, "open user database", err, "path", path)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, logutil.LogAndWrapErr(logger, "ping user database", err, "path", path)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, logutil.LogAndWrapErr(logger, "migrate user database", err, "path", path)
	}

	return &DB{db: db, log: logger}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// AddUser saves a new user and returns it.
func (d *DB) AddUser(ctx context.Context, email, hashedPassword string) (*types.User, error) {
	now := time.Now().UTC()
	user := &types.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, email, hashed_password, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.HashedPassword, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, logutil.DebugAndWrapErr(d.log, "add user", wrapDuplicate(err))
	}
	return user, nil
}

// FindUserBy returns the first user matching filter.
func (d *DB) FindUserBy(ctx context.Context, filter Filter) (*types.User, error) {
	where, args := filter.where()
	if where == "" {
		return nil, ErrInvalidFilter
	}

	row := d.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoResultFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// UpdateUser sets the given columns on the user with id. A nil value
// stores NULL.
func (d *DB) UpdateUser(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		if _, ok := updatable[column]; !ok {
			return fmt.Errorf("%w: %s", ErrInvalidField, column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	sets := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+2)
	for _, column := range columns {
		sets = append(sets, column+" = ?")
		args = append(args, fields[column])
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := d.db.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update user: %w", wrapDuplicate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return ErrNoResultFound
	}
	return nil
}

func (d *DB) Get(ctx context.Context, id string) (*types.User, error) {
	if id == "" {
		return nil, ErrNoResultFound
	}
	return d.FindUserBy(ctx, Filter{ID: id})
}

func (d *DB) SearchByEmail(ctx context.Context, email string) (*types.User, error) {
	if email == "" {
		return nil, ErrNoResultFound
	}
	return d.FindUserBy(ctx, Filter{Email: email})
}

func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func scanUser(row *sql.Row) (*types.User, error) {
	var (
		user       types.User
		sessionID  sql.NullString
		resetToken sql.NullString
	)
	err := row.Scan(&user.ID, &user.Email, &user.HashedPassword, &user.FirstName, &user.LastName,
		&sessionID, &resetToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		user.SessionID = &sessionID.String
	}
	if resetToken.Valid {
		user.ResetToken = &resetToken.String
	}
	return &user, nil
}
