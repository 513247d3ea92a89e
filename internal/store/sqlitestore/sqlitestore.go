// Package sqlitestore is a modernc.org/sqlite-backed implementation of the
// internal/store contracts: a pure-Go CGo-free SQLite driver, used here as
// the durable reference store for a standalone deployment of this sync
// engine.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/synccal/caldav-notebook-sync/internal/store"
	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS notebooks (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	remote_path TEXT NOT NULL,
	last_sync INTEGER NOT NULL DEFAULT 0,
	plugin_tag TEXT,
	organizer_email TEXT,
	color TEXT
);

CREATE TABLE IF NOT EXISTS incidences (
	notebook_id TEXT NOT NULL,
	uid TEXT NOT NULL,
	recurrence_id INTEGER,
	kind INTEGER NOT NULL,
	start_at INTEGER,
	end_at INTEGER,
	all_day INTEGER NOT NULL DEFAULT 0,
	dtend_synthesized INTEGER NOT NULL DEFAULT 0,
	rrule TEXT,
	summary TEXT,
	status TEXT,
	sync_uri TEXT NOT NULL DEFAULT '',
	sync_etag TEXT NOT NULL DEFAULT '',
	detached_and_synced INTEGER NOT NULL DEFAULT 0,
	modified_at INTEGER NOT NULL DEFAULT 0,
	deleted_at INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (notebook_id, uid, recurrence_id)
);

CREATE TABLE IF NOT EXISTS clean_sync (
	account_id TEXT PRIMARY KEY
);
`

// Store is a *sql.DB-backed implementation of NotebookStore, IncidenceStore,
// and CleanSyncStore.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func (s *Store) ListNotebooks(ctx context.Context, accountID string) ([]*model.Notebook, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, account_id, remote_path, last_sync, plugin_tag, organizer_email, color FROM notebooks WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: listing notebooks: %w", err)
	}
	defer rows.Close()

	var out []*model.Notebook
	for rows.Next() {
		nb := &model.Notebook{}
		var lastSync int64
		if err := rows.Scan(&nb.ID, &nb.AccountID, &nb.RemotePath, &lastSync, &nb.PluginTag, &nb.OrganizerEmail, &nb.Color); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning notebook: %w", err)
		}
		nb.LastSync = timeOrZero(lastSync)
		out = append(out, nb)
	}
	return out, rows.Err()
}

func (s *Store) GetNotebook(ctx context.Context, id string) (*model.Notebook, error) {
	nb := &model.Notebook{}
	var lastSync int64
	err := s.db.QueryRowContext(ctx, `SELECT id, account_id, remote_path, last_sync, plugin_tag, organizer_email, color FROM notebooks WHERE id = ?`, id).
		Scan(&nb.ID, &nb.AccountID, &nb.RemotePath, &lastSync, &nb.PluginTag, &nb.OrganizerEmail, &nb.Color)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: getting notebook %s: %w", id, err)
	}
	nb.LastSync = timeOrZero(lastSync)
	return nb, nil
}

func (s *Store) UpsertNotebook(ctx context.Context, nb *model.Notebook) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notebooks (id, account_id, remote_path, last_sync, plugin_tag, organizer_email, color)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			remote_path = excluded.remote_path,
			last_sync = excluded.last_sync,
			plugin_tag = excluded.plugin_tag,
			organizer_email = excluded.organizer_email,
			color = excluded.color
	`, nb.ID, nb.AccountID, nb.RemotePath, unixOrZero(nb.LastSync), nb.PluginTag, nb.OrganizerEmail, nb.Color)
	if err != nil {
		return fmt.Errorf("sqlitestore: upserting notebook %s: %w", nb.ID, err)
	}
	return nil
}

func (s *Store) DeleteNotebook(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: deleting notebook %s: %w", id, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM incidences WHERE notebook_id = ?`, id); err != nil {
		return fmt.Errorf("sqlitestore: deleting notebook %s incidences: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notebooks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlitestore: deleting notebook %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *Store) SetLastSync(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notebooks SET last_sync = ? WHERE id = ?`, unixOrZero(at), id)
	if err != nil {
		return fmt.Errorf("sqlitestore: setting last_sync for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func recIDParam(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func (s *Store) scanIncidences(rows *sql.Rows) ([]*model.Incidence, error) {
	var out []*model.Incidence
	for rows.Next() {
		inc := &model.Incidence{CustomProps: map[string]string{}}
		var recID, start, end sql.NullInt64
		var allDay, dtendSynth, detached int
		if err := rows.Scan(&inc.UID, &recID, &inc.Kind, &start, &end, &allDay, &dtendSynth,
			&inc.RRule, &inc.Summary, &inc.Status, &inc.SyncURI, &inc.SyncETag, &detached); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning incidence: %w", err)
		}
		if recID.Valid {
			t := time.Unix(recID.Int64, 0).UTC()
			inc.RecurrenceID = &t
		}
		if start.Valid {
			t := time.Unix(start.Int64, 0).UTC()
			inc.Start = &t
		}
		if end.Valid {
			t := time.Unix(end.Int64, 0).UTC()
			inc.End = &t
		}
		inc.AllDay = allDay != 0
		inc.DTEndSynthesized = dtendSynth != 0
		inc.DetachedAndSynced = detached != 0
		out = append(out, inc)
	}
	return out, rows.Err()
}

func (s *Store) ListIncidences(ctx context.Context, notebookID string) ([]*model.Incidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, recurrence_id, kind, start_at, end_at, all_day, dtend_synthesized,
		       rrule, summary, status, sync_uri, sync_etag, detached_and_synced
		FROM incidences WHERE notebook_id = ? AND deleted_at = 0`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: listing incidences: %w", err)
	}
	defer rows.Close()
	return s.scanIncidences(rows)
}

func (s *Store) ListDeletedSince(ctx context.Context, notebookID string, since time.Time) ([]*model.Incidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, recurrence_id, kind, start_at, end_at, all_day, dtend_synthesized,
		       rrule, summary, status, sync_uri, sync_etag, detached_and_synced
		FROM incidences WHERE notebook_id = ? AND deleted_at > ?`, notebookID, unixOrZero(since))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: listing deleted incidences: %w", err)
	}
	defer rows.Close()
	return s.scanIncidences(rows)
}

func (s *Store) ListModifiedSince(ctx context.Context, notebookID string, since time.Time) ([]*model.Incidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, recurrence_id, kind, start_at, end_at, all_day, dtend_synthesized,
		       rrule, summary, status, sync_uri, sync_etag, detached_and_synced
		FROM incidences WHERE notebook_id = ? AND deleted_at = 0 AND modified_at > ?`, notebookID, unixOrZero(since))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: listing modified incidences: %w", err)
	}
	defer rows.Close()
	return s.scanIncidences(rows)
}

func (s *Store) UpsertIncidence(ctx context.Context, notebookID string, inc *model.Incidence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidences (notebook_id, uid, recurrence_id, kind, start_at, end_at, all_day,
			dtend_synthesized, rrule, summary, status, sync_uri, sync_etag, detached_and_synced, modified_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(notebook_id, uid, recurrence_id) DO UPDATE SET
			kind = excluded.kind, start_at = excluded.start_at, end_at = excluded.end_at,
			all_day = excluded.all_day, dtend_synthesized = excluded.dtend_synthesized,
			rrule = excluded.rrule, summary = excluded.summary, status = excluded.status,
			sync_uri = excluded.sync_uri, sync_etag = excluded.sync_etag,
			detached_and_synced = excluded.detached_and_synced, modified_at = excluded.modified_at,
			deleted_at = 0
	`, notebookID, inc.UID, recIDParam(inc.RecurrenceID), inc.Kind, timeParam(inc.Start), timeParam(inc.End),
		boolParam(inc.AllDay), boolParam(inc.DTEndSynthesized), inc.RRule, inc.Summary, inc.Status,
		inc.SyncURI, inc.SyncETag, boolParam(inc.DetachedAndSynced), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlitestore: upserting incidence %s: %w", inc.UID, err)
	}
	return nil
}

func (s *Store) DeleteIncidence(ctx context.Context, notebookID, uid string, recurrenceID *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidences SET deleted_at = ? WHERE notebook_id = ? AND uid = ? AND recurrence_id IS ?`,
		time.Now().Unix(), notebookID, uid, recIDParam(recurrenceID))
	if err != nil {
		return fmt.Errorf("sqlitestore: deleting incidence %s: %w", uid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetWatermark(ctx context.Context, notebookID, uid string, recurrenceID *time.Time, uri, etag string, detachedAndSynced bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidences SET sync_uri = ?, sync_etag = ?, detached_and_synced = ?
		WHERE notebook_id = ? AND uid = ? AND recurrence_id IS ?`,
		uri, etag, boolParam(detachedAndSynced), notebookID, uid, recIDParam(recurrenceID))
	if err != nil {
		return fmt.Errorf("sqlitestore: setting watermark for %s: %w", uid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IsCleaned(ctx context.Context, accountID string) (bool, error) {
	var dummy string
	err := s.db.QueryRowContext(ctx, `SELECT account_id FROM clean_sync WHERE account_id = ?`, accountID).Scan(&dummy)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlitestore: checking clean-sync marker for %s: %w", accountID, err)
	}
	return true, nil
}

func (s *Store) MarkCleaned(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO clean_sync (account_id) VALUES (?)`, accountID)
	if err != nil {
		return fmt.Errorf("sqlitestore: marking account %s cleaned: %w", accountID, err)
	}
	return nil
}

func timeParam(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func boolParam(b bool) int {
	if b {
		return 1
	}
	return 0
}
