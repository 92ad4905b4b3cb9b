package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const recordsTable = "extracted_records"

var recordColumns = []string{
	"id", "content_hash", "source_path", "filename", "channel", "method",
	"template", "status", "error", "record", "created_at", "updated_at",
}

// ListFilter narrows List. Zero values mean no restriction.
type ListFilter struct {
	Status constants.RecordStatus
	Limit  int
}

// RecordRepository persists extraction results keyed by ID and content hash.
type RecordRepository interface {
	// Save inserts rec or replaces the record with the same ID. A zero ID is
	// assigned; CreatedAt is kept when already set.
	Save(ctx context.Context, rec *entity.StoredRecord) error
	Get(ctx context.Context, id uuid.UUID) (*entity.StoredRecord, error)
	FindByHash(ctx context.Context, hash string) (*entity.StoredRecord, error)
	// List returns records newest first.
	List(ctx context.Context, filter ListFilter) ([]*entity.StoredRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

type sqlRecordRepository struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// NewSQLRecordRepository wraps an open database and creates the records table.
func NewSQLRecordRepository(ctx context.Context, dialectName string, db *sql.DB, logger *slog.Logger) (RecordRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return newSQLRecordRepository(ctx, dialectName, db, logger)
}

func newSQLRecordRepository(ctx context.Context, dialectName string, db *sql.DB, logger *slog.Logger) (*sqlRecordRepository, error) {
	r := &sqlRecordRepository{drv: driverFor(dialectName, db), dialect: dialectName, logger: logger}
	if err := r.migrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// createRecordsTable is valid for both sqlite and postgres.
const createRecordsTable = `CREATE TABLE IF NOT EXISTS "` + recordsTable + `" (
	"id" varchar(36) NOT NULL,
	"content_hash" varchar(64) NOT NULL UNIQUE,
	"source_path" text NOT NULL,
	"filename" text NOT NULL,
	"channel" varchar(16) NOT NULL,
	"method" varchar(16) NOT NULL,
	"template" varchar(64) NOT NULL,
	"status" varchar(16) NOT NULL,
	"error" text NOT NULL,
	"record" text NOT NULL,
	"created_at" bigint NOT NULL,
	"updated_at" bigint NOT NULL,
	PRIMARY KEY ("id")
)`

func (r *sqlRecordRepository) migrate(ctx context.Context) error {
	if err := r.drv.Exec(ctx, createRecordsTable, []any{}, nil); err != nil {
		r.logger.Error("failed to create records table", "error", err)
		return fmt.Errorf("%w: migrate: %w", common.ErrDatabase, err)
	}
	return nil
}

func (r *sqlRecordRepository) Save(ctx context.Context, rec *entity.StoredRecord) error {
	stamp(rec, time.Now())
	body, err := json.Marshal(rec.Record)
	if err != nil {
		return fmt.Errorf("%w: encode record: %w", common.ErrDatabase, err)
	}

	q, args := entsql.Dialect(r.dialect).
		Insert(recordsTable).
		Columns(recordColumns...).
		Values(
			rec.ID.String(), rec.ContentHash, rec.SourcePath, rec.Filename,
			string(rec.Channel), string(rec.Method), rec.Template, string(rec.Status),
			rec.Error, string(body), rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(),
		).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, c := range recordColumns {
					if c != "id" && c != "created_at" {
						u.SetExcluded(c)
					}
				}
			}),
		).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to save record", "id", rec.ID, "content_hash", rec.ContentHash, "error", err)
		return fmt.Errorf("%w: save record: %w", common.ErrDatabase, err)
	}
	return nil
}

func (r *sqlRecordRepository) Get(ctx context.Context, id uuid.UUID) (*entity.StoredRecord, error) {
	return r.one(ctx, entsql.EQ("id", id.String()), id.String())
}

func (r *sqlRecordRepository) FindByHash(ctx context.Context, hash string) (*entity.StoredRecord, error) {
	return r.one(ctx, entsql.EQ("content_hash", hash), hash)
}

func (r *sqlRecordRepository) one(ctx context.Context, p *entsql.Predicate, key string) (*entity.StoredRecord, error) {
	recs, err := r.query(ctx, r.selector().Where(p).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: record %s", common.ErrNotFound, key)
	}
	return recs[0], nil
}

func (r *sqlRecordRepository) List(ctx context.Context, filter ListFilter) ([]*entity.StoredRecord, error) {
	s := r.selector().OrderBy(entsql.Desc("created_at"), entsql.Asc("id"))
	if filter.Status != "" {
		s = s.Where(entsql.EQ("status", string(filter.Status)))
	}
	if filter.Limit > 0 {
		s = s.Limit(filter.Limit)
	}
	return r.query(ctx, s)
}

func (r *sqlRecordRepository) selector() *entsql.Selector {
	return entsql.Dialect(r.dialect).Select(recordColumns...).From(entsql.Table(recordsTable))
}

func (r *sqlRecordRepository) query(ctx context.Context, s *entsql.Selector) ([]*entity.StoredRecord, error) {
	q, args := s.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		r.logger.Error("failed to query records", "error", err)
		return nil, fmt.Errorf("%w: query records: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make([]*entity.StoredRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return out, nil
}

func scanRecord(rows entsql.Rows) (*entity.StoredRecord, error) {
	var (
		rec                               entity.StoredRecord
		id, channel, method, status, body string
		createdAt, updatedAt              int64
	)
	err := rows.Scan(&id, &rec.ContentHash, &rec.SourcePath, &rec.Filename, &channel, &method,
		&rec.Template, &status, &rec.Error, &body, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: scan record: %w", common.ErrDatabase, err)
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: bad record id %q: %w", common.ErrDatabase, id, err)
	}
	if err := json.Unmarshal([]byte(body), &rec.Record); err != nil {
		return nil, fmt.Errorf("%w: decode record %s: %w", common.ErrDatabase, id, err)
	}
	rec.Channel = constants.Channel(channel)
	rec.Method = constants.AcquisitionMethod(method)
	rec.Status = constants.RecordStatus(status)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &rec, nil
}

func (r *sqlRecordRepository) Ping(ctx context.Context) error {
	if r.pool != nil {
		return r.pool.Ping(ctx)
	}
	return r.drv.DB().PingContext(ctx)
}

func (r *sqlRecordRepository) Close() error {
	r.logger.Info("closing database connections")
	err := r.drv.Close()
	if r.pool != nil {
		r.pool.Close()
	}
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		r.logger.Error("failed to close database", "error", err)
		return err
	}
	r.logger.Info("database connections closed")
	return nil
}

// stamp assigns an ID and timestamps before a write.
func stamp(rec *entity.StoredRecord, now time.Time) {
	now = now.UTC()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Record.LineItems == nil {
		rec.Record.LineItems = []entity.LineItem{}
	}
}
