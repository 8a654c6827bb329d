// Package postgres provides a PostgreSQL store of recorded card object tables.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/cardcontact/cardfs/internal/logging"
	"github.com/cardcontact/cardfs/internal/source"
	"github.com/cardcontact/cardfs/pkg/models"
	"github.com/cardcontact/cardfs/pkg/mscfs"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Store is a PostgreSQL object table store.
type Store struct {
	db *sql.DB
}

// ObjectRow maps to the card_objects table.
type ObjectRow struct {
	CardID    string
	Seq       int
	ObjectID  string
	Size      int64
	ACLRead   int
	ACLWrite  int
	ACLDelete int
}

// New opens and pings the database.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs the embedded SQL migrations in name order.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		logging.Info("running migration", zap.String("file", f))
		content, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

// Load returns the recorded object table of a card in enumeration order.
func (s *Store) Load(ctx context.Context, cardID string) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT card_id, seq, object_id, size, acl_read, acl_write, acl_delete
		 FROM card_objects WHERE card_id = $1 ORDER BY seq`, cardID)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var r ObjectRow
		if err := rows.Scan(&r.CardID, &r.Seq, &r.ObjectID, &r.Size,
			&r.ACLRead, &r.ACLWrite, &r.ACLDelete); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e, err := rowToEntry(&r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	logging.Debug("loaded card objects",
		zap.String("card", cardID),
		zap.Int("objects", len(entries)))
	return entries, nil
}

// Record replaces the stored object table of a card.
func (s *Store) Record(ctx context.Context, cardID string, entries []models.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM card_objects WHERE card_id = $1`, cardID); err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO card_objects (card_id, seq, object_id, size, acl_read, acl_write, acl_delete)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		r := entryToRow(cardID, i, e)
		if _, err := stmt.ExecContext(ctx, r.CardID, r.Seq, r.ObjectID, r.Size,
			r.ACLRead, r.ACLWrite, r.ACLDelete); err != nil {
			return fmt.Errorf("insert object %s: %w", r.ObjectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logging.Info("recorded card objects",
		zap.String("card", cardID),
		zap.Int("objects", len(entries)))
	return nil
}

// Lister returns a card lister that reloads the table on every restart.
func (s *Store) Lister(ctx context.Context, cardID string) mscfs.Lister {
	return source.NewReplay(func() ([]models.Entry, error) {
		return s.Load(ctx, cardID)
	})
}

func rowToEntry(r *ObjectRow) (models.Entry, error) {
	id, err := models.ParseObjectID(r.ObjectID)
	if err != nil {
		return models.Entry{}, fmt.Errorf("card %s seq %d: %w", r.CardID, r.Seq, err)
	}
	if r.Size < 0 || r.Size > math.MaxUint32 {
		return models.Entry{}, fmt.Errorf("card %s seq %d: size %d out of range", r.CardID, r.Seq, r.Size)
	}
	for _, acl := range []int{r.ACLRead, r.ACLWrite, r.ACLDelete} {
		if acl < 0 || acl > math.MaxUint16 {
			return models.Entry{}, fmt.Errorf("card %s seq %d: access code %d out of range", r.CardID, r.Seq, acl)
		}
	}
	return models.Entry{
		ID:   id,
		Size: uint32(r.Size),
		ACL: models.ACL{
			Read:   uint16(r.ACLRead),
			Write:  uint16(r.ACLWrite),
			Delete: uint16(r.ACLDelete),
		},
	}, nil
}

func entryToRow(cardID string, seq int, e models.Entry) ObjectRow {
	return ObjectRow{
		CardID:    cardID,
		Seq:       seq,
		ObjectID:  e.ID.String(),
		Size:      int64(e.Size),
		ACLRead:   int(e.ACL.Read),
		ACLWrite:  int(e.ACL.Write),
		ACLDelete: int(e.ACL.Delete),
	}
}
