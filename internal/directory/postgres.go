package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/db"
	"github.com/sells-group/phonelink/internal/model"
)

// PostgresStore implements Store on a Postgres users table.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id                     TEXT PRIMARY KEY,
	phone                  TEXT NOT NULL DEFAULT '',
	email                  TEXT NOT NULL DEFAULT '',
	name                   TEXT NOT NULL DEFAULT '',
	service_community_code TEXT NOT NULL DEFAULT '',
	role                   TEXT NOT NULL DEFAULT '',
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_users_phone ON users(phone);
CREATE INDEX IF NOT EXISTS idx_users_community ON users(service_community_code);
`

const userColumns = `id, phone, email, name, service_community_code, role`

var upsertColumns = []string{"id", "phone", "email", "name", "service_community_code", "role"}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "directory: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Scan(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "directory: scan")
	}
	return collectUsers(rows, "directory: scan")
}

func (s *PostgresStore) FindBy(ctx context.Context, field, value string, limit int) ([]model.User, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1 ORDER BY id`, userColumns, pgx.Identifier{field}.Sanitize())
	args := []any{value}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "directory: find by "+field)
	}
	return collectUsers(rows, "directory: find by "+field)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Phone, &u.Email, &u.Name, &u.CommunityScope, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "directory: user %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "directory: get user")
	}
	return &u, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, fields map[string]any) error {
	names, values, err := sortedFields(fields)
	if err != nil {
		return err
	}

	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		sets[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{name}.Sanitize(), i+1)
		args = append(args, values[i])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = now() WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "directory: update user")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.NotFound, "directory: user %s not found", id)
	}
	return nil
}

// Upsert loads users through a temp table and COPY, then merges them with
// INSERT ... ON CONFLICT (id) DO UPDATE in one transaction.
func (s *PostgresStore) Upsert(ctx context.Context, users []model.User) (int64, error) {
	if len(users) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "directory: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE _tmp_users (LIKE users INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		return 0, eris.Wrap(err, "directory: upsert: create temp table")
	}

	rows := make([][]any, len(users))
	for i, u := range users {
		rows[i] = []any{u.ID, u.Phone, u.Email, u.Name, u.CommunityScope, u.Role}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"_tmp_users"}, upsertColumns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrap(err, "directory: upsert: copy into temp table")
	}

	cols := quoteAndJoin(upsertColumns)
	var setClauses []string
	for _, col := range upsertColumns[1:] {
		ident := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", ident, ident))
	}
	setClauses = append(setClauses, "updated_at = now()")

	upsertSQL := fmt.Sprintf(
		"INSERT INTO users (%s) SELECT %s FROM _tmp_users ON CONFLICT (id) DO UPDATE SET %s",
		cols, cols, strings.Join(setClauses, ", "),
	)
	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrap(err, "directory: upsert: insert on conflict")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "directory: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func collectUsers(rows pgx.Rows, op string) ([]model.User, error) {
	defer rows.Close()
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

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
