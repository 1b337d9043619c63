package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgres(mock), mock
}

var userCols = []string{"id", "phone", "email", "name", "service_community_code", "role"}

func TestPostgresStore_Scan(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, phone, email, name, service_community_code, role FROM users ORDER BY id`).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u1", "0912345678", "", "Amy", "A101", "").
			AddRow("u2", "", "b@ex.com", "Ben", "", "admin"))

	users, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, model.User{ID: "u1", Phone: "0912345678", Name: "Amy", CommunityScope: "A101"}, users[0])
	assert.Equal(t, "admin", users[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Scan_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM users ORDER BY id`).WillReturnError(errors.New("connection refused"))

	_, err := s.Scan(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "directory: scan")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindBy_WithLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM users WHERE "phone" = \$1 ORDER BY id LIMIT \$2`).
		WithArgs("+886912345678", 1).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u1", "+886912345678", "p886912345678@ex.com", "Amy", "", ""))

	users, err := s.FindBy(context.Background(), FieldPhone, "+886912345678", 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "p886912345678@ex.com", users[0].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindBy_Unbounded(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM users WHERE "service_community_code" = \$1 ORDER BY id$`).
		WithArgs("A101").
		WillReturnRows(pgxmock.NewRows(userCols))

	users, err := s.FindBy(context.Background(), FieldCommunityScope, "A101", 0)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindBy_UnknownField(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.FindBy(context.Background(), "password; DROP TABLE users", "x", 1)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("admin1").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow("admin1", "", "", "Root", "", "admin"))

	u, err := s.Get(context.Background(), "admin1")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_FieldLevel(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE users SET "email" = \$1, updated_at = now\(\) WHERE id = \$2`).
		WithArgs("p886912345678@ex.com", "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.Update(context.Background(), "u1", map[string]any{FieldEmail: "p886912345678@ex.com"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_SortedFields(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE users SET "email" = \$1, "name" = \$2, updated_at = now\(\) WHERE id = \$3`).
		WithArgs("a@ex.com", "Amy", "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.Update(context.Background(), "u1", map[string]any{FieldName: "Amy", FieldEmail: "a@ex.com"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs("a@ex.com", "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.Update(context.Background(), "ghost", map[string]any{FieldEmail: "a@ex.com"})
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_Invalid(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.Update(context.Background(), "u1", nil)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))

	err = s.Update(context.Background(), "u1", map[string]any{FieldEmail: 42})
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestPostgresStore_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE _tmp_users`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_users"}, upsertColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO users .* ON CONFLICT \(id\) DO UPDATE SET`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.Upsert(context.Background(), []model.User{
		{ID: "u1", Phone: "0912345678"},
		{ID: "u2", Phone: "0987654321", CommunityScope: "A101"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
