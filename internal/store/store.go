// Package store declares the local-storage contracts the notebook sync
// agent and orchestrator depend on. The credential store, account store,
// and calendar store are external singletons, accessed only through their
// declared contracts. memstore and sqlitestore provide reference
// implementations; production deployments may supply their own.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// ErrNotFound is returned by a lookup that finds no matching row.
var ErrNotFound = errors.New("store: not found")

// NotebookStore persists the Notebook records for one account.
type NotebookStore interface {
	ListNotebooks(ctx context.Context, accountID string) ([]*model.Notebook, error)
	GetNotebook(ctx context.Context, id string) (*model.Notebook, error)
	UpsertNotebook(ctx context.Context, nb *model.Notebook) error
	DeleteNotebook(ctx context.Context, id string) error
	SetLastSync(ctx context.Context, id string, at time.Time) error
}

// IncidenceStore persists the Incidence records within one notebook,
// including the first-class sync watermark fields.
type IncidenceStore interface {
	// ListIncidences returns every incidence currently stored for notebookID.
	ListIncidences(ctx context.Context, notebookID string) ([]*model.Incidence, error)

	// ListDeletedSince returns incidences locally deleted after since,
	// still retained as tombstones carrying their last-known watermark.
	ListDeletedSince(ctx context.Context, notebookID string, since time.Time) ([]*model.Incidence, error)

	// ListModifiedSince returns incidences locally modified after since.
	ListModifiedSince(ctx context.Context, notebookID string, since time.Time) ([]*model.Incidence, error)

	// UpsertIncidence writes inc (keyed by UID+RecurrenceID) into notebookID.
	UpsertIncidence(ctx context.Context, notebookID string, inc *model.Incidence) error

	// DeleteIncidence removes the incidence identified by uid+recurrenceID.
	DeleteIncidence(ctx context.Context, notebookID, uid string, recurrenceID *time.Time) error

	// SetWatermark updates only the sync watermark fields of the named
	// incidence, without marking it locally-modified (the write that would
	// otherwise cause a spurious-modification false positive on the next
	// cycle).
	SetWatermark(ctx context.Context, notebookID, uid string, recurrenceID *time.Time, uri, etag string, detachedAndSynced bool) error
}

// CleanSyncStore records, per account, whether the one-time post-install
// "clean sync" has already run.
type CleanSyncStore interface {
	IsCleaned(ctx context.Context, accountID string) (bool, error)
	MarkCleaned(ctx context.Context, accountID string) error
}
