package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/smokyabdulrahman/prayer-companion/internal/schedule"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id      TEXT PRIMARY KEY,
	kind    TEXT NOT NULL,
	prayer  TEXT NOT NULL DEFAULT '',
	fire_at INTEGER NOT NULL,
	channel TEXT NOT NULL DEFAULT '',
	sound   TEXT NOT NULL DEFAULT '',
	title   TEXT NOT NULL DEFAULT '',
	body    TEXT NOT NULL DEFAULT '',
	data    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS notifications_fire_at ON notifications (fire_at);
`

// row is the database shape of a schedule.Task.
type row struct {
	ID      string `db:"id"`
	Kind    string `db:"kind"`
	Prayer  string `db:"prayer"`
	FireAt  int64  `db:"fire_at"`
	Channel string `db:"channel"`
	Sound   string `db:"sound"`
	Title   string `db:"title"`
	Body    string `db:"body"`
	Data    string `db:"data"`
}

func toRow(t schedule.Task) (row, error) {
	data, err := json.Marshal(t.Data)
	if err != nil {
		return row{}, fmt.Errorf("failed to encode task data: %w", err)
	}
	return row{
		ID:      t.ID,
		Kind:    string(t.Kind),
		Prayer:  t.Prayer,
		FireAt:  t.FireAt.Unix(),
		Channel: t.Channel,
		Sound:   t.Sound,
		Title:   t.Title,
		Body:    t.Body,
		Data:    string(data),
	}, nil
}

func (r row) task() schedule.Task {
	t := schedule.Task{
		ID:      r.ID,
		Kind:    schedule.Kind(r.Kind),
		Prayer:  r.Prayer,
		FireAt:  time.Unix(r.FireAt, 0).UTC(),
		Channel: r.Channel,
		Sound:   r.Sound,
		Title:   r.Title,
		Body:    r.Body,
	}
	if err := json.Unmarshal([]byte(r.Data), &t.Data); err != nil {
		log.Warn().Err(err).Str("id", r.ID).Msg("[notify] ignoring corrupt task data")
	}
	return t
}

// SQLiteScheduler implements schedule.Scheduler on a SQLite table. The
// same table is the dispatcher's delivery queue.
type SQLiteScheduler struct {
	db        *sqlx.DB
	permitted atomic.Bool

	// Now is the clock List uses to tell pending rows from due ones.
	// Nil means time.Now.
	Now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path. Use
// ":memory:" for a private in-memory database.
func OpenSQLite(ctx context.Context, path string, permitted bool) (*SQLiteScheduler, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open notification database %s: %w", path, err)
	}
	// SQLite serializes writers; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create notification schema: %w", err)
	}

	s := &SQLiteScheduler{db: db}
	s.permitted.Store(permitted)
	log.Debug().Str("path", path).Msg("[notify] opened notification database")
	return s, nil
}

// Close closes the database.
func (s *SQLiteScheduler) Close() error {
	return s.db.Close()
}

// SetPermitted grants or revokes notification permission.
func (s *SQLiteScheduler) SetPermitted(ok bool) {
	s.permitted.Store(ok)
}

// Permitted implements schedule.Scheduler.
func (s *SQLiteScheduler) Permitted(ctx context.Context) (bool, error) {
	return s.permitted.Load(), nil
}

func (s *SQLiteScheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// List implements schedule.Scheduler. Only pending rows are listed; rows
// already due belong to the dispatcher, which delivers or expires them.
func (s *SQLiteScheduler) List(ctx context.Context) ([]schedule.Task, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM notifications WHERE fire_at > ? ORDER BY fire_at, id`, s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return tasks(rows), nil
}

// Create implements schedule.Scheduler. Creating an existing ID fails.
func (s *SQLiteScheduler) Create(ctx context.Context, t schedule.Task) error {
	r, err := toRow(t)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (id, kind, prayer, fire_at, channel, sound, title, body, data)
		VALUES (:id, :kind, :prayer, :fire_at, :channel, :sound, :title, :body, :data)`, r)
	if err != nil {
		return fmt.Errorf("failed to create notification %s: %w", t.ID, err)
	}
	return nil
}

// Cancel implements schedule.Scheduler. Cancelling an unknown ID is a no-op.
func (s *SQLiteScheduler) Cancel(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to cancel notification %s: %w", id, err)
	}
	return nil
}

// Due returns tasks whose fire time is at or before now, oldest first.
func (s *SQLiteScheduler) Due(ctx context.Context, now time.Time) ([]schedule.Task, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM notifications WHERE fire_at <= ? ORDER BY fire_at, id`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query due notifications: %w", err)
	}
	return tasks(rows), nil
}

func tasks(rows []row) []schedule.Task {
	out := make([]schedule.Task, len(rows))
	for i, r := range rows {
		out[i] = r.task()
	}
	return out
}
