// Package orchestrator implements C8: per-account sequencing — discovery,
// calendar enumeration, the clean-sync-required check, and fanning out
// one notebooksync.Agent per enabled calendar, gated at the Applying step.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/synccal/caldav-notebook-sync/internal/account"
	"github.com/synccal/caldav-notebook-sync/internal/cleansync"
	"github.com/synccal/caldav-notebook-sync/internal/dav"
	"github.com/synccal/caldav-notebook-sync/internal/notebooksync"
	"github.com/synccal/caldav-notebook-sync/internal/settings"
	"github.com/synccal/caldav-notebook-sync/internal/store"
	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// Status is the account-level exit status the host's sync framework consumes.
type Status int

const (
	StatusSuccess Status = iota
	StatusCancelled
	StatusAuthenticationFailure
	StatusConnectionError
	StatusDatabaseFailure
	StatusItemFailures
	StatusInternalError
)

// Result is the aggregate outcome of one account's sync cycle.
type Result struct {
	Status       Status
	ItemFailures int
	Err          error
}

// Orchestrator ties together the external contracts (credentials,
// account config, local store) and the per-notebook sync agents.
type Orchestrator struct {
	Credentials account.CredentialStore
	Configs     account.ConfigStore
	Notebooks   store.NotebookStore
	Incidences  store.IncidenceStore
	CleanSync   store.CleanSyncStore
	Locker      *cleansync.Locker
	Log         zerolog.Logger

	PrevMonths     int
	NextMonths     int
	MaxConcurrency int
}

// SyncAccount runs one full account cycle: authenticate, discover, list
// calendars, clean-sync check, merge, then fan out. The clean-sync check
// runs ahead of the merge, mirroring the original control flow where
// cleanSyncRequired() deletes the account's notebooks before syncCalendars()
// resolves each remote collection to a (possibly freshly created) notebook.
// Running merge first would have the clean-sync deletion immediately
// discard the very notebook just created for this cycle.
func (o *Orchestrator) SyncAccount(ctx context.Context, accountID string) Result {
	creds, err := o.Credentials.Get(ctx, accountID)
	if err != nil {
		return Result{Status: StatusConnectionError, Err: fmt.Errorf("orchestrator: fetching credentials: %w", err)}
	}
	cfg, err := o.Configs.Get(ctx, accountID)
	if err != nil {
		return Result{Status: StatusConnectionError, Err: fmt.Errorf("orchestrator: fetching account config: %w", err)}
	}

	sessionSettings := settings.Build(cfg, creds)
	if err := settings.Discover(ctx, sessionSettings, o.Log); err != nil {
		if errors.Is(err, dav.ErrAuthenticationFailed) {
			_ = o.Credentials.MarkStale(ctx, accountID)
			return Result{Status: StatusAuthenticationFailure, Err: err}
		}
		return Result{Status: StatusConnectionError, Err: err}
	}

	client := dav.NewClient(sessionSettings, o.Log)
	remoteCalendars, err := client.ListCalendars(ctx, sessionSettings.CalendarHome)
	if err != nil {
		o.Log.Warn().Err(err).Str("account", accountID).Msg("listing calendars failed, falling back to stored list")
		remoteCalendars = nil
	}

	if err := o.runCleanSyncCheck(ctx, accountID); err != nil {
		o.Log.Warn().Err(err).Str("account", accountID).Msg("clean-sync check failed, proceeding without it")
	}

	notebooks, err := o.mergeNotebooks(ctx, accountID, cfg, remoteCalendars)
	if err != nil {
		return Result{Status: StatusDatabaseFailure, Err: err}
	}

	now := time.Now()
	windowFrom := now.AddDate(0, -clampMonths(o.PrevMonths), 0)
	windowTo := now.AddDate(0, clampMonths(o.NextMonths), 0)

	agents := make([]*notebooksync.Agent, 0, len(notebooks))
	for _, nb := range notebooks {
		if !cfg.IsEnabled(nb.RemotePath) {
			continue
		}
		agent := notebooksync.NewAgent(nb, client, o.Incidences, o.Notebooks, o.Log)
		agent.WindowFrom, agent.WindowTo = windowFrom, windowTo
		agents = append(agents, agent)
	}

	outcomes := make([]*notebooksync.Outcome, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(1, o.MaxConcurrency))
	for i, a := range agents {
		i, a := i, a
		g.Go(func() error {
			outcomes[i] = a.RunUntilPostsync(gctx)
			return nil
		})
	}
	_ = g.Wait()

	fatal := false
	authFailed := false
	itemFailures := 0
	for _, oc := range outcomes {
		if oc == nil {
			continue
		}
		if oc.State == notebooksync.HardFail {
			fatal = true
		}
		if oc.AuthFailed {
			authFailed = true
		}
		itemFailures += oc.ItemFailures
	}

	if !fatal {
		for _, a := range agents {
			if err := a.Apply(ctx); err != nil {
				itemFailures++
				o.Log.Warn().Err(err).Str("notebook", a.Notebook.ID).Msg("applying remote changes failed")
			}
		}
	}

	if authFailed {
		_ = o.Credentials.MarkStale(ctx, accountID)
		return Result{Status: StatusAuthenticationFailure, ItemFailures: itemFailures}
	}
	if fatal {
		return Result{Status: StatusConnectionError, ItemFailures: itemFailures}
	}
	if itemFailures > 0 {
		return Result{Status: StatusItemFailures, ItemFailures: itemFailures}
	}
	return Result{Status: StatusSuccess}
}

// mergeNotebooks inserts new collections and updates the color and allowed
// components of known ones. Notebooks whose collection is absent from
// remote are kept unchanged; removal is only acted on by the Agent's
// Applying step, driven by a 404 observed during that notebook's own fetch.
func (o *Orchestrator) mergeNotebooks(ctx context.Context, accountID string, cfg account.Config, remote []model.CalendarInfo) ([]*model.Notebook, error) {
	existing, err := o.Notebooks.ListNotebooks(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: listing notebooks: %w", err)
	}
	byPath := make(map[string]*model.Notebook, len(existing))
	for _, nb := range existing {
		byPath[nb.RemotePath] = nb
	}

	for _, info := range remote {
		nb, ok := byPath[info.RemotePath]
		if !ok {
			nb = &model.Notebook{
				ID:                uuid.NewString(),
				AccountID:         accountID,
				RemotePath:        info.RemotePath,
				Color:             info.Color,
				AllowedComponents: info.Components,
			}
			byPath[info.RemotePath] = nb
		} else {
			nb.Color = info.Color
			nb.AllowedComponents = info.Components
		}
		if err := o.Notebooks.UpsertNotebook(ctx, nb); err != nil {
			return nil, fmt.Errorf("orchestrator: upserting notebook %s: %w", info.RemotePath, err)
		}
	}

	out := make([]*model.Notebook, 0, len(byPath))
	for _, nb := range byPath {
		out = append(out, nb)
	}
	return out, nil
}

// runCleanSyncCheck, once per account,
// under the cooperative flock (internal/cleansync), deletes all local
// notebooks for this account, then marks it cleaned. Notebooks of orphan
// accounts are not deleted: this step only touches this account's own
// notebooks.
func (o *Orchestrator) runCleanSyncCheck(ctx context.Context, accountID string) error {
	return o.Locker.Guard(accountID, func(wasFirstAttacher bool) error {
		cleaned, err := o.CleanSync.IsCleaned(ctx, accountID)
		if err != nil {
			return fmt.Errorf("orchestrator: checking clean-sync marker: %w", err)
		}
		if cleaned {
			return nil
		}
		notebooks, err := o.Notebooks.ListNotebooks(ctx, accountID)
		if err != nil {
			return fmt.Errorf("orchestrator: listing notebooks for clean sync: %w", err)
		}
		for _, nb := range notebooks {
			if err := o.Notebooks.DeleteNotebook(ctx, nb.ID); err != nil {
				return fmt.Errorf("orchestrator: deleting notebook %s during clean sync: %w", nb.ID, err)
			}
		}
		return o.CleanSync.MarkCleaned(ctx, accountID)
	})
}

func clampMonths(n int) int {
	const max = 120
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
