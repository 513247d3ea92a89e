// Package memstore is an in-memory reference implementation of the
// internal/store contracts, used by tests and as a template for the
// sqlite-backed store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/synccal/caldav-notebook-sync/internal/store"
	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

type incidenceKey struct {
	notebookID   string
	uid          string
	recurrenceID int64 // 0 for the series parent / standalone incidence
	hasRecID     bool
}

type incidenceRecord struct {
	incidence  *model.Incidence
	modifiedAt time.Time
	deletedAt  time.Time // zero unless tombstoned
}

// Store is a thread-safe in-memory NotebookStore + IncidenceStore +
// CleanSyncStore.
type Store struct {
	mu sync.Mutex

	notebooks  map[string]*model.Notebook
	incidences map[incidenceKey]*incidenceRecord
	cleaned    map[string]bool

	now func() time.Time
}

// New builds an empty Store. now defaults to time.Now; tests may override
// it for deterministic modified/deleted timestamps.
func New() *Store {
	return &Store{
		notebooks:  map[string]*model.Notebook{},
		incidences: map[incidenceKey]*incidenceRecord{},
		cleaned:    map[string]bool{},
		now:        time.Now,
	}
}

// SetClock overrides the store's time source, for deterministic tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func keyFor(notebookID string, inc *model.Incidence) incidenceKey {
	k := incidenceKey{notebookID: notebookID, uid: inc.UID}
	if inc.RecurrenceID != nil {
		k.recurrenceID = inc.RecurrenceID.Unix()
		k.hasRecID = true
	}
	return k
}

func (s *Store) ListNotebooks(ctx context.Context, accountID string) ([]*model.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Notebook
	for _, nb := range s.notebooks {
		if nb.AccountID == accountID {
			out = append(out, nb)
		}
	}
	return out, nil
}

func (s *Store) GetNotebook(ctx context.Context, id string) (*model.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nb, ok := s.notebooks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return nb, nil
}

func (s *Store) UpsertNotebook(ctx context.Context, nb *model.Notebook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notebooks[nb.ID] = nb
	return nil
}

func (s *Store) DeleteNotebook(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notebooks, id)
	for k := range s.incidences {
		if k.notebookID == id {
			delete(s.incidences, k)
		}
	}
	return nil
}

func (s *Store) SetLastSync(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nb, ok := s.notebooks[id]
	if !ok {
		return store.ErrNotFound
	}
	nb.LastSync = at
	return nil
}

func (s *Store) ListIncidences(ctx context.Context, notebookID string) ([]*model.Incidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Incidence
	for k, rec := range s.incidences {
		if k.notebookID == notebookID && rec.deletedAt.IsZero() {
			out = append(out, rec.incidence)
		}
	}
	return out, nil
}

func (s *Store) ListDeletedSince(ctx context.Context, notebookID string, since time.Time) ([]*model.Incidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Incidence
	for k, rec := range s.incidences {
		if k.notebookID == notebookID && !rec.deletedAt.IsZero() && rec.deletedAt.After(since) {
			out = append(out, rec.incidence)
		}
	}
	return out, nil
}

func (s *Store) ListModifiedSince(ctx context.Context, notebookID string, since time.Time) ([]*model.Incidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Incidence
	for k, rec := range s.incidences {
		if k.notebookID == notebookID && rec.deletedAt.IsZero() && rec.modifiedAt.After(since) {
			out = append(out, rec.incidence)
		}
	}
	return out, nil
}

func (s *Store) UpsertIncidence(ctx context.Context, notebookID string, inc *model.Incidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyFor(notebookID, inc)
	s.incidences[k] = &incidenceRecord{incidence: inc, modifiedAt: s.now()}
	return nil
}

func (s *Store) DeleteIncidence(ctx context.Context, notebookID, uid string, recurrenceID *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := incidenceKey{notebookID: notebookID, uid: uid}
	if recurrenceID != nil {
		k.recurrenceID = recurrenceID.Unix()
		k.hasRecID = true
	}
	rec, ok := s.incidences[k]
	if !ok {
		return store.ErrNotFound
	}
	rec.deletedAt = s.now()
	return nil
}

func (s *Store) SetWatermark(ctx context.Context, notebookID, uid string, recurrenceID *time.Time, uri, etag string, detachedAndSynced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := incidenceKey{notebookID: notebookID, uid: uid}
	if recurrenceID != nil {
		k.recurrenceID = recurrenceID.Unix()
		k.hasRecID = true
	}
	rec, ok := s.incidences[k]
	if !ok {
		return store.ErrNotFound
	}
	rec.incidence.SyncURI = uri
	rec.incidence.SyncETag = etag
	rec.incidence.DetachedAndSynced = detachedAndSynced
	return nil
}

func (s *Store) IsCleaned(ctx context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleaned[accountID], nil
}

func (s *Store) MarkCleaned(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleaned[accountID] = true
	return nil
}
