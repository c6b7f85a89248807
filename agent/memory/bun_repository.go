package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type memoryRow struct {
	bun.BaseModel `bun:"table:memories,alias:m"`

	ID        string         `bun:"id,pk"`
	DeviceID  string         `bun:"device_id,notnull"`
	Text      string         `bun:"text,notnull"`
	Embedding []float32      `bun:"embedding,type:jsonb"`
	Metadata  map[string]any `bun:"metadata,type:jsonb"`
	Timestamp time.Time      `bun:"timestamp,notnull"`
}

// BunRepository persists records in Postgres through bun. Similarity ranking
// happens in the Store after a device-scoped fetch; the table only needs to
// answer "all records for this device, newest first".
type BunRepository struct {
	db *bun.DB
}

func NewBunRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

// NewBunRepositoryFromDSN opens a Postgres connection and ensures the
// memories table exists.
func NewBunRepositoryFromDSN(ctx context.Context, dsn string) (*BunRepository, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	repo := NewBunRepository(db)
	if err := repo.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *BunRepository) Init(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().
		Model((*memoryRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("%w: create memories table: %v", ErrMemory, err)
	}
	if _, err := r.db.NewCreateIndex().
		Model((*memoryRow)(nil)).
		Index("memories_device_id_idx").
		Column("device_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("%w: create device index: %v", ErrMemory, err)
	}
	return nil
}

func (r *BunRepository) Close() error {
	return r.db.Close()
}

func (r *BunRepository) Insert(ctx context.Context, rec Record) error {
	row := toRow(rec)
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert record id=%s: %v", ErrMemory, rec.ID, err)
	}
	return nil
}

func (r *BunRepository) Update(ctx context.Context, rec Record) error {
	row := toRow(rec)
	res, err := r.db.NewUpdate().Model(&row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: update record id=%s: %v", ErrMemory, rec.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: record id=%s not found", ErrMemory, rec.ID)
	}
	return nil
}

func (r *BunRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	var rows []memoryRow
	q := r.db.NewSelect().
		Model(&rows).
		Where("device_id = ?", deviceID).
		Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: list records for device=%s: %v", ErrMemory, deviceID, err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func toRow(rec Record) memoryRow {
	return memoryRow{
		ID:        rec.ID,
		DeviceID:  rec.DeviceID,
		Text:      rec.Text,
		Embedding: rec.Embedding,
		Metadata:  rec.Metadata,
		Timestamp: rec.Timestamp.UTC(),
	}
}

func fromRow(row memoryRow) Record {
	return Record{
		ID:        row.ID,
		DeviceID:  row.DeviceID,
		Text:      row.Text,
		Embedding: row.Embedding,
		Metadata:  row.Metadata,
		Timestamp: row.Timestamp,
	}
}
