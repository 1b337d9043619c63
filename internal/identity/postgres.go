package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/db"
	"github.com/sells-group/phonelink/internal/model"
)

// Constraint names created by Migrate, used to type unique violations.
const (
	constraintPK    = "accounts_pkey"
	constraintEmail = "accounts_email_key"
	constraintPhone = "accounts_phone_number_key"
)

const migrationSQL = `CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	email         TEXT,
	phone_number  TEXT,
	password_hash TEXT NOT NULL DEFAULT '',
	disabled      BOOLEAN NOT NULL DEFAULT false,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT accounts_email_key UNIQUE (email),
	CONSTRAINT accounts_phone_number_key UNIQUE (phone_number)
)`

const accountColumns = `id, COALESCE(email, ''), COALESCE(phone_number, ''), disabled, created_at, updated_at`

// PostgresStore keeps identity accounts in a Postgres table. Passwords are
// stored as bcrypt hashes; empty emails and phone numbers are stored as
// NULL so the unique constraints ignore them.
type PostgresStore struct {
	pool db.Pool

	// HashCost is the bcrypt cost. Defaults to bcrypt.DefaultCost.
	HashCost int
}

// NewPostgres creates a PostgresStore over pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, HashCost: bcrypt.DefaultCost}
}

// Migrate creates the accounts table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return eris.Wrap(err, "identity: migrate")
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "identity: account %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "identity: get account "+id)
	}
	return a, nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, in model.AccountInput) (*model.Account, error) {
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, email, phone_number, password_hash)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
		RETURNING `+accountColumns,
		in.ID, in.Email, in.PhoneNumber, hash,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, classifyWrite(err, "identity: create account "+in.ID, in.ID, in.Email, in.PhoneNumber)
	}
	return a, nil
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, id string, upd model.AccountUpdate) (*model.Account, error) {
	if upd.Empty() {
		return s.GetAccount(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if upd.Email != nil {
		add("email = NULLIF($%d, '')", *upd.Email)
	}
	if upd.PhoneNumber != nil {
		add("phone_number = NULLIF($%d, '')", *upd.PhoneNumber)
	}
	if upd.Password != nil {
		hash, err := s.hash(*upd.Password)
		if err != nil {
			return nil, err
		}
		add("password_hash = $%d", hash)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE accounts SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), accountColumns)

	a, err := scanAccount(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.NotFound, "identity: account %s not found", id)
	}
	if err != nil {
		var email, phone string
		if upd.Email != nil {
			email = *upd.Email
		}
		if upd.PhoneNumber != nil {
			phone = *upd.PhoneNumber
		}
		return nil, classifyWrite(err, "identity: update account "+id, id, email, phone)
	}
	return a, nil
}

// VerifyPassword reports whether password matches the stored hash for id.
func (s *PostgresStore) VerifyPassword(ctx context.Context, id, password string) (bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE id = $1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperr.Newf(apperr.NotFound, "identity: account %s not found", id)
	}
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, err, "identity: read password hash")
	}
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

func (s *PostgresStore) hash(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	cost := s.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidArgument, err, "identity: hash password")
	}
	return string(b), nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Email, &a.PhoneNumber, &a.Disabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// classifyWrite turns a unique violation into a typed conflict and anything
// else into an Internal error.
func classifyWrite(err error, msg, id, email, phone string) error {
	constraint, ok := db.ConstraintViolated(err)
	if !ok {
		return apperr.Wrap(apperr.Internal, err, msg)
	}
	switch constraint {
	case constraintEmail:
		return apperr.NewConflict(apperr.KeyEmail, email)
	case constraintPhone:
		return apperr.NewConflict(apperr.KeyPhone, phone)
	case constraintPK:
		return apperr.NewConflict(apperr.KeyID, id)
	default:
		return apperr.Wrap(apperr.Conflict, err, msg)
	}
}
