package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lvillar/signdoc"
)

// Postgres keeps records in a single table.
type Postgres struct {
	DB    *pgxpool.Pool
	name  string
	table string // quoted name
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an existing pool. table defaults to "signdoc_records".
func NewPostgres(db *pgxpool.Pool, table string) *Postgres {
	if table == "" {
		table = "signdoc_records"
	}
	return &Postgres{DB: db, name: table, table: pgx.Identifier{table}.Sanitize()}
}

// OpenPostgres connects to url and creates the table if it is missing.
func OpenPostgres(ctx context.Context, url, table string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, backendErr("postgres", "connect", err)
	}
	s := NewPostgres(db, table)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the records table and its email index.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+s.table+` (
  id               TEXT PRIMARY KEY,
  full_name        TEXT NOT NULL,
  email            TEXT NOT NULL,
  email_key        TEXT NOT NULL,
  phone            TEXT NOT NULL,
  role             TEXT NOT NULL DEFAULT '',
  notes            TEXT NOT NULL DEFAULT '',
  signature_method TEXT NOT NULL DEFAULT '',
  signature_image  BYTEA,
  artifact         BYTEA,
  created_at       TIMESTAMPTZ NOT NULL,
  display_date     TEXT NOT NULL,
  status           TEXT NOT NULL
)`)
	if err != nil {
		return backendErr("postgres", "schema", err)
	}
	index := pgx.Identifier{s.name + "_email_key_idx"}.Sanitize()
	if _, err := s.DB.Exec(ctx, `CREATE INDEX IF NOT EXISTS `+index+` ON `+s.table+` (email_key)`); err != nil {
		return backendErr("postgres", "schema", err)
	}
	return nil
}

const pgColumns = `id,full_name,email,phone,role,notes,signature_method,signature_image,artifact,created_at,display_date,status`

func (s *Postgres) Append(ctx context.Context, r Record) (Record, error) {
	r = prepare(r)
	_, err := s.DB.Exec(ctx, `INSERT INTO `+s.table+`(`+pgColumns+`,email_key) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.ID, r.FullName, r.Email, r.Phone, r.Role, r.Notes, string(r.SignatureMethod),
		r.SignatureImage, r.Artifact, r.Timestamp, r.DisplayDate, string(r.Status), EmailKey(r.Email))
	if err != nil {
		return Record{}, backendErr("postgres", "append", err)
	}
	return r, nil
}

func (s *Postgres) All(ctx context.Context) ([]Record, error) {
	return s.query(ctx, "all", `SELECT `+pgColumns+` FROM `+s.table+` ORDER BY created_at ASC, id ASC`)
}

func (s *Postgres) Get(ctx context.Context, id string) (Record, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+pgColumns+` FROM `+s.table+` WHERE id=$1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, notFound(id)
	}
	if err != nil {
		return Record{}, backendErr("postgres", "get", err)
	}
	return r, nil
}

func (s *Postgres) ByEmail(ctx context.Context, email string) ([]Record, error) {
	return s.query(ctx, "by email",
		`SELECT `+pgColumns+` FROM `+s.table+` WHERE email_key=$1 ORDER BY created_at ASC, id ASC`, EmailKey(email))
}

func (s *Postgres) query(ctx context.Context, op, q string, args ...any) ([]Record, error) {
	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, backendErr("postgres", op, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, backendErr("postgres", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("postgres", op, err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r              Record
		method, status string
	)
	err := row.Scan(&r.ID, &r.FullName, &r.Email, &r.Phone, &r.Role, &r.Notes, &method,
		&r.SignatureImage, &r.Artifact, &r.Timestamp, &r.DisplayDate, &status)
	if err != nil {
		return Record{}, err
	}
	r.SignatureMethod = signdoc.SignatureMethod(method)
	r.Status = Status(status)
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM `+s.table+` WHERE id=$1`, id)
	if err != nil {
		return backendErr("postgres", "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *Postgres) Clear(ctx context.Context) error {
	if _, err := s.DB.Exec(ctx, `DELETE FROM `+s.table); err != nil {
		return backendErr("postgres", "clear", err)
	}
	return nil
}

func (s *Postgres) Close() error {
	s.DB.Close()
	return nil
}
