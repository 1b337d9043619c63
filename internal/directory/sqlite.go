package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "directory: sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "directory: sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id                     TEXT PRIMARY KEY,
	phone                  TEXT NOT NULL DEFAULT '',
	email                  TEXT NOT NULL DEFAULT '',
	name                   TEXT NOT NULL DEFAULT '',
	service_community_code TEXT NOT NULL DEFAULT '',
	role                   TEXT NOT NULL DEFAULT '',
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_users_phone ON users(phone);
CREATE INDEX IF NOT EXISTS idx_users_community ON users(service_community_code);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "directory: sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Scan(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "directory: sqlite: scan")
	}
	return collectSQLUsers(rows, "directory: sqlite: scan")
}

func (s *SQLiteStore) FindBy(ctx context.Context, field, value string, limit int) ([]model.User, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	// field is whitelisted by checkField.
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = ? ORDER BY id`, userColumns, field)
	args := []any{value}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "directory: sqlite: find by "+field)
	}
	return collectSQLUsers(rows, "directory: sqlite: find by "+field)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Phone, &u.Email, &u.Name, &u.CommunityScope, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "directory: user %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "directory: sqlite: get user")
	}
	return &u, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fields map[string]any) error {
	names, values, err := sortedFields(fields)
	if err != nil {
		return err
	}
	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		sets[i] = name + " = ?"
		args = append(args, values[i])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = datetime('now') WHERE id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "directory: sqlite: update user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "directory: sqlite: rows affected")
	}
	if n == 0 {
		return apperr.Newf(apperr.NotFound, "directory: user %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, users []model.User) (int64, error) {
	if len(users) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "directory: sqlite: upsert: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO users (id, phone, email, name, service_community_code, role)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			phone = excluded.phone,
			email = excluded.email,
			name = excluded.name,
			service_community_code = excluded.service_community_code,
			role = excluded.role,
			updated_at = datetime('now')`)
	if err != nil {
		return 0, eris.Wrap(err, "directory: sqlite: upsert: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var total int64
	for _, u := range users {
		res, err := stmt.ExecContext(ctx, u.ID, u.Phone, u.Email, u.Name, u.CommunityScope, u.Role)
		if err != nil {
			return 0, eris.Wrapf(err, "directory: sqlite: upsert %s", u.ID)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "directory: sqlite: upsert: commit")
	}
	return total, nil
}

func collectSQLUsers(rows *sql.Rows, op string) ([]model.User, error) {
	defer rows.Close() //nolint:errcheck
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Phone, &u.Email, &u.Name, &u.CommunityScope, &u.Role); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, op+": scan row")
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, op)
	}
	return users, nil
}
