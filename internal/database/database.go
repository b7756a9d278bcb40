package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/Syn1ak/notes-api-autotest/internal/config"
	"github.com/Syn1ak/notes-api-autotest/internal/models"
	"github.com/hashicorp/go-hclog"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	noteColumns = []string{"id", "title", "content"}
)

const returningNote = "RETURNING id, title, content"

const ddl = `
CREATE TABLE IF NOT EXISTS notes (
    id       UUID PRIMARY KEY,
    title    VARCHAR(255) NOT NULL CHECK (title <> ''),
    content  TEXT
);

CREATE INDEX IF NOT EXISTS idx_notes_title ON notes(title);
`

type Database struct {
	Db     *sqlx.DB
	logger hclog.Logger
}

func New(db *sqlx.DB, logger hclog.Logger) *Database {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Database{
		Db:     db,
		logger: logger,
	}
}

// Open connects with the configured driver, sizes the pool and creates
// the notes table when it is missing.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger hclog.Logger) (*Database, error) {
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	d := New(db, logger)
	if err := d.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	d.logger.Info("database connected", "driver", cfg.Driver, "host", cfg.Host, "name", cfg.Name)
	return d, nil
}

func (d *Database) Migrate(ctx context.Context) error {
	if _, err := d.Db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	if d.Db != nil {
		return d.Db.Close()
	}
	return nil
}

func (d *Database) ListAll(ctx context.Context) ([]models.Note, error) {
	sqlStr, args, err := psql.Select(noteColumns...).
		From("notes").
		OrderBy(`title COLLATE "C" ASC`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	notes := make([]models.Note, 0)
	if err := d.Db.SelectContext(ctx, &notes, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

func (d *Database) FindByID(ctx context.Context, id string) (*models.Note, error) {
	sqlStr, args, err := psql.Select(noteColumns...).
		From("notes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select for note: %w", err)
	}

	var n models.Note
	if err := d.Db.GetContext(ctx, &n, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNoteNotFound
		}
		return nil, fmt.Errorf("selecting note: %w", err)
	}
	return &n, nil
}

func (d *Database) Insert(ctx context.Context, in models.CreateNoteInput) (*models.Note, error) {
	sqlStr, args, err := psql.Insert("notes").
		Columns(noteColumns...).
		Values(in.ID, in.Title, in.Content).
		Suffix(returningNote).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert for note: %w", err)
	}

	var n models.Note
	if err := d.Db.GetContext(ctx, &n, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("inserting note: %w", err)
	}
	d.logger.Debug("note inserted", "id", n.ID)
	return &n, nil
}

// MergeAndFetch applies the supplied fields and returns the merged row in
// one UPDATE ... RETURNING statement. An update without fields is a plain
// lookup.
func (d *Database) MergeAndFetch(ctx context.Context, in models.UpdateNoteInput) (*models.Note, error) {
	if !in.HasChanges() {
		return d.FindByID(ctx, in.NoteID)
	}

	uq := psql.Update("notes")
	if in.Title != nil {
		uq = uq.Set("title", *in.Title)
	}
	if in.ClearContent {
		uq = uq.Set("content", nil)
	} else if in.Content != nil {
		uq = uq.Set("content", *in.Content)
	}

	sqlStr, args, err := uq.Where(sq.Eq{"id": in.NoteID}).
		Suffix(returningNote).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update for note: %w", err)
	}

	var n models.Note
	if err := d.Db.GetContext(ctx, &n, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNoteNotFound
		}
		return nil, fmt.Errorf("updating note: %w", err)
	}
	d.logger.Debug("note updated", "id", n.ID)
	return &n, nil
}

// DeleteByID returns the number of rows removed.
func (d *Database) DeleteByID(ctx context.Context, id string) (int64, error) {
	delQ, delArgs, err := psql.Delete("notes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building delete for notes: %w", err)
	}
	res, err := d.Db.ExecContext(ctx, delQ, delArgs...)
	if err != nil {
		return 0, fmt.Errorf("deleting note: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected (notes delete): %w", err)
	}
	if ra > 0 {
		d.logger.Debug("note deleted", "id", id)
	}
	return ra, nil
}
