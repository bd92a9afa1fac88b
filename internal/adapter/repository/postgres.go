package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hive-corporation/ioc-console/internal/adapter/repository/migrations"
	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const iocColumns = `id, type, value, description, severity, source, reporter, reporter_email,
	date_reported, status, tags, tlp, confidence, first_seen, last_seen, notes, refs`

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

var _ DB = (*pgxpool.Pool)(nil)

type PostgresRepository struct {
	db    DB
	now   func() time.Time
	newID func() string
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{
		db:    db,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// gooseUp is a seam for testing goose.UpContext.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIOC(row rowScanner) (domain.IOC, error) {
	var ioc domain.IOC
	err := row.Scan(
		&ioc.ID,
		&ioc.Type,
		&ioc.Value,
		&ioc.Description,
		&ioc.Severity,
		&ioc.Source,
		&ioc.Reporter,
		&ioc.ReporterEmail,
		&ioc.DateReported,
		&ioc.Status,
		&ioc.Tags,
		&ioc.TLP,
		&ioc.Confidence,
		&ioc.FirstSeen,
		&ioc.LastSeen,
		&ioc.Notes,
		&ioc.References,
	)
	return ioc, err
}

func (r *PostgresRepository) List(ctx context.Context) ([]domain.IOC, error) {
	query := `SELECT ` + iocColumns + ` FROM iocs ORDER BY seq`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query IOCs: %w", err)
	}
	defer rows.Close()

	iocs := []domain.IOC{}

	for rows.Next() {
		ioc, err := scanIOC(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan IOC: %w", err)
		}
		iocs = append(iocs, ioc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return iocs, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.IOC, error) {
	query := `SELECT ` + iocColumns + ` FROM iocs WHERE id = $1`

	ioc, err := scanIOC(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get IOC %s: %w", id, err)
	}

	return &ioc, nil
}

func (r *PostgresRepository) Create(ctx context.Context, ioc domain.IOC) (*domain.IOC, error) {
	ioc.ID = r.newID()
	ioc.DateReported = r.now().UTC()
	ioc.Status = domain.StatusPending
	if ioc.Tags == nil {
		ioc.Tags = []string{}
	}

	query := `
		INSERT INTO iocs (` + iocColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.db.Exec(ctx, query,
		ioc.ID,
		ioc.Type,
		ioc.Value,
		ioc.Description,
		ioc.Severity,
		ioc.Source,
		ioc.Reporter,
		ioc.ReporterEmail,
		ioc.DateReported,
		ioc.Status,
		ioc.Tags,
		ioc.TLP,
		ioc.Confidence,
		ioc.FirstSeen,
		ioc.LastSeen,
		ioc.Notes,
		ioc.References,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert IOC: %w", err)
	}

	return &ioc, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, patch domain.IOCPatch) (*domain.IOC, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + iocColumns + ` FROM iocs WHERE id = $1 FOR UPDATE`

	ioc, err := scanIOC(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load IOC %s: %w", id, err)
	}

	patch.Apply(&ioc)
	if ioc.Tags == nil {
		ioc.Tags = []string{}
	}

	update := `
		UPDATE iocs SET
			type = $2, value = $3, description = $4, severity = $5, source = $6,
			reporter = $7, reporter_email = $8, status = $9, tags = $10, tlp = $11,
			confidence = $12, first_seen = $13, last_seen = $14, notes = $15, refs = $16
		WHERE id = $1
	`

	_, err = tx.Exec(ctx, update,
		ioc.ID,
		ioc.Type,
		ioc.Value,
		ioc.Description,
		ioc.Severity,
		ioc.Source,
		ioc.Reporter,
		ioc.ReporterEmail,
		ioc.Status,
		ioc.Tags,
		ioc.TLP,
		ioc.Confidence,
		ioc.FirstSeen,
		ioc.LastSeen,
		ioc.Notes,
		ioc.References,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update IOC %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	return &ioc, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM iocs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete IOC %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
