// Package postgres implements the mpt stores on PostgreSQL using sqlx over
// the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/valter-silva-au/mpt/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// DB is a PostgreSQL-backed implementation of every core store interface.
type DB struct {
	log  *slog.Logger
	conn *sqlx.DB
}

// New connects to the database at dsn.
func New(log *slog.Logger, dsn string) (*DB, error) {
	conn, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		log.Error("connection problem", "error", err)
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &DB{log: log, conn: conn}, nil
}

// NewWithConn wraps an existing connection.
func NewWithConn(log *slog.Logger, conn *sqlx.DB) *DB {
	return &DB{log: log, conn: conn}
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate applies the bootstrap schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	db.log.Debug("applying schema")
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	db.log.Debug("schema applied")
	return nil
}

// pg helpers

func isUniqueViolation(err error) bool {
	return pgCode(err) == "23505"
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == "23503"
}

func isCheckViolation(err error) bool {
	return pgCode(err) == "23514"
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Date conversion between models.Date and DATE columns.

func toNullTime(d *models.Date) sql.NullTime {
	if d == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time(), Valid: true}
}

func fromNullTime(t sql.NullTime) *models.Date {
	if !t.Valid {
		return nil
	}
	d := models.DateOf(t.Time.UTC())
	return &d
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func toNullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
