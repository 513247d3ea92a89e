package notebooksync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/synccal/caldav-notebook-sync/internal/dav"
	"github.com/synccal/caldav-notebook-sync/internal/incidence"
	"github.com/synccal/caldav-notebook-sync/internal/store"
	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// pendingApply is what RunUntilPostsync buffers for the gated Applying
// step: remote changes this notebook observed, not yet written to the
// local store, performed only after all sibling notebooks finish.
type pendingApply struct {
	syncStartedAt time.Time
	upserts       []*model.CalendarResource
	removals      []*model.Incidence
	watermarks    []watermarkUpdate
	deleteNotebook bool
}

// watermarkUpdate is one successfully-upsynced local incidence's new server
// identity, to be persisted via store.SetWatermark during Apply. A series
// upload produces one of these per persistent exception in addition to the
// parent, since they all share the parent's uri/etag.
type watermarkUpdate struct {
	uid               string
	recurrenceID      *time.Time
	uri               string
	etag              string
	detachedAndSynced bool
}

// Agent drives one notebook through one sync cycle (C7).
type Agent struct {
	Notebook *model.Notebook
	Client   *dav.Client
	Incidences store.IncidenceStore
	Notebooks  store.NotebookStore
	Log        zerolog.Logger

	// WindowFrom/WindowTo bound the sync window computed by the
	// orchestrator: [now-prevMonths, now+nextMonths].
	WindowFrom, WindowTo time.Time

	pending *pendingApply
}

// NewAgent builds an Agent for one notebook.
func NewAgent(nb *model.Notebook, client *dav.Client, incidences store.IncidenceStore, notebooks store.NotebookStore, log zerolog.Logger) *Agent {
	return &Agent{Notebook: nb, Client: client, Incidences: incidences, Notebooks: notebooks, Log: log}
}

// RunUntilPostsync drives Idle through Postsync: fetch, delta, upsync,
// watermark harvest. It never touches the local store for anything but
// reads — the Applying step, run later via Apply, is the only point that
// mutates it, so that the orchestrator's cross-notebook barrier is
// meaningful.
func (a *Agent) RunUntilPostsync(ctx context.Context) *Outcome {
	syncStartedAt := time.Now()

	if a.Notebook.NeedsSlowSync() {
		return a.runSlowSync(ctx, syncStartedAt)
	}
	return a.runQuickSync(ctx, syncStartedAt)
}

func (a *Agent) runSlowSync(ctx context.Context, syncStartedAt time.Time) *Outcome {
	resources, err := a.Client.GetCalendarResourcesInRange(ctx, a.Notebook.RemotePath, a.WindowFrom, a.WindowTo)
	if outcome, handled := a.classifyFetchError(err); handled {
		return outcome
	}

	a.pending = &pendingApply{syncStartedAt: syncStartedAt}
	for i := range resources {
		a.pending.upserts = append(a.pending.upserts, &resources[i])
	}
	return &Outcome{State: Postsync}
}

func (a *Agent) runQuickSync(ctx context.Context, syncStartedAt time.Time) *Outcome {
	local, err := a.Incidences.ListIncidences(ctx, a.Notebook.ID)
	if err != nil {
		return &Outcome{State: HardFail, Err: fmt.Errorf("notebooksync: listing local incidences: %w", err)}
	}
	deleted, err := a.Incidences.ListDeletedSince(ctx, a.Notebook.ID, a.Notebook.LastSync)
	if err != nil {
		return &Outcome{State: HardFail, Err: fmt.Errorf("notebooksync: listing locally deleted incidences: %w", err)}
	}
	modified, err := a.Incidences.ListModifiedSince(ctx, a.Notebook.ID, a.Notebook.LastSync)
	if err != nil {
		return &Outcome{State: HardFail, Err: fmt.Errorf("notebooksync: listing locally modified incidences: %w", err)}
	}

	etagResources, err := a.Client.GetCalendarEtags(ctx, a.Notebook.RemotePath, a.WindowFrom, a.WindowTo)
	if outcome, handled := a.classifyFetchError(err); handled {
		return outcome
	}

	remoteEtags := make(map[string]string, len(etagResources))
	for _, r := range etagResources {
		remoteEtags[r.Href] = r.ETag
	}
	previouslySynced := make(map[string]string, len(local))
	for _, x := range local {
		if x.HasSyncWatermark() {
			previouslySynced[x.SyncURI] = x.SyncETag
		}
	}

	delta := ComputeDelta(DeltaInput{
		RemotePath:            a.Notebook.RemotePath,
		RemoteEtags:           remoteEtags,
		PreviouslySyncedEtags: previouslySynced,
		Local:                 local,
		LocallyDeleted:        deleted,
		LocallyModified:       modified,
	})

	toFetch := append(append([]string{}, delta.RemoteAdditions...), delta.RemoteModifications...)
	var fetched []model.CalendarResource
	if len(toFetch) > 0 {
		fetched, err = a.Client.GetCalendarResourcesByHref(ctx, a.Notebook.RemotePath, toFetch)
		if outcome, handled := a.classifyFetchError(err); handled {
			return outcome
		}
	}
	byHref := make(map[string]*model.CalendarResource, len(fetched))
	for i := range fetched {
		byHref[fetched[i].Href] = &fetched[i]
	}

	delta.LocalModifications = a.demoteSpuriousModifications(delta.LocalModifications, byHref)

	outcome, watermarks := a.upsync(ctx, delta, local)
	if outcome.State == HardFail {
		return outcome
	}

	a.pending = &pendingApply{syncStartedAt: syncStartedAt, watermarks: watermarks}
	for _, href := range delta.RemoteAdditions {
		if res, ok := byHref[href]; ok {
			a.pending.upserts = append(a.pending.upserts, res)
		}
	}
	for _, href := range delta.RemoteModifications {
		if res, ok := byHref[href]; ok {
			a.pending.upserts = append(a.pending.upserts, res)
		}
	}
	a.pending.removals = append(a.pending.removals, delta.RemoteDeletions...)

	return &Outcome{State: Postsync, ItemFailures: outcome.ItemFailures}
}

// demoteSpuriousModifications re-evaluates each "possible" local
// modification against its fetched remote counterpart using the semantic
// comparator: if they agree on every exported property, the only real
// difference was the watermark the previous upsync wrote back, and the
// incidence is dropped from localModifications.
func (a *Agent) demoteSpuriousModifications(candidates []*model.Incidence, remote map[string]*model.CalendarResource) []*model.Incidence {
	var out []*model.Incidence
	for _, local := range candidates {
		res, ok := remote[local.SyncURI]
		if !ok {
			out = append(out, local)
			continue
		}
		var remoteCounterpart *model.Incidence
		for _, inc := range res.Incidences {
			if incidenceKey(inc) == incidenceKey(local) {
				remoteCounterpart = inc
				break
			}
		}
		if remoteCounterpart == nil {
			out = append(out, local)
			continue
		}
		if incidence.SemanticEqual(local, remoteCounterpart, a.Notebook.ID, nil, nil) {
			continue // spurious: watermark-only difference
		}
		out = append(out, local)
	}
	return out
}

// classifyFetchError maps a collection-level fetch error onto an Outcome:
// 404 on a collection schedules local deletion
// (soft, sync continues to completion so siblings aren't affected);
// ErrAuthenticationFailed aborts this notebook and flags the account;
// anything else is a hard failure for this notebook only.
func (a *Agent) classifyFetchError(err error) (*Outcome, bool) {
	if err == nil {
		return nil, false
	}
	if errors.Is(err, dav.ErrCollectionGone) {
		a.pending = &pendingApply{syncStartedAt: time.Now(), deleteNotebook: true}
		return &Outcome{State: Postsync, DeleteNotebook: true}, true
	}
	if errors.Is(err, dav.ErrAuthenticationFailed) {
		return &Outcome{State: HardFail, Err: err, AuthFailed: true}, true
	}
	return &Outcome{State: HardFail, Err: err}, true
}

// upsync performs the Delta → Upsync → Postsync ordering:
// DELETEs first, then all PUTs concurrently, then etag harvest. A local
// deletion of a lone persistent exception is converted into a
// modification of the parent (re-serializing without that exception)
// rather than a server-side DELETE, since the server has no resource for
// a single occurrence.
func (a *Agent) upsync(ctx context.Context, delta *model.DeltaSet, local []*model.Incidence) (*Outcome, []watermarkUpdate) {
	itemFailures := 0
	byUID := groupByUID(local)

	wholeSeriesDeletions, exceptionOnlyDeletions := splitDeletions(delta.LocalDeletions)
	for _, x := range wholeSeriesDeletions {
		if err := a.Client.DeleteResource(ctx, x.SyncURI); err != nil {
			if errors.Is(err, dav.ErrSoftFailure) {
				itemFailures++
				continue
			}
			itemFailures++
		}
	}

	uploadCandidates := append(append([]*model.Incidence{}, delta.LocalAdditions...), delta.LocalModifications...)
	for _, deletedExc := range exceptionOnlyDeletions {
		group := byUID[deletedExc.UID]
		parent := groupParent(group)
		if parent == nil {
			continue // nothing left to re-upload; the delete-only deletion is absorbed above
		}
		alreadyQueued := false
		for _, q := range uploadCandidates {
			if q.UID == parent.UID && !q.IsException() {
				alreadyQueued = true
				break
			}
		}
		if !alreadyQueued {
			uploadCandidates = append(uploadCandidates, parent)
		}
	}

	siblingsByCandidate := make([][]*model.Incidence, len(uploadCandidates))
	for i, inc := range uploadCandidates {
		siblingsByCandidate[i] = groupExceptions(byUID[inc.UID], inc)
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]error, len(uploadCandidates))
	for i, inc := range uploadCandidates {
		i, inc := i, inc
		siblings := siblingsByCandidate[i]
		g.Go(func() error {
			exportedSiblings := make([]*model.Incidence, len(siblings))
			for j, s := range siblings {
				exportedSiblings[j] = incidence.IncidenceToExport(s, a.Notebook.ID, siblings)
			}
			data, err := incidence.ToICS(incidence.IncidenceToExport(inc, a.Notebook.ID, siblings), exportedSiblings)
			if err != nil {
				results[i] = err
				return nil
			}
			uri := inc.SyncURI
			if uri == "" {
				uri = computeURI(a.Notebook.RemotePath, inc.UID)
			}
			newETag, err := a.Client.SendCalendarResource(gctx, uri, data, inc.SyncETag)
			if err != nil {
				results[i] = err
				return nil
			}
			inc.SyncURI = uri
			if newETag != "" {
				inc.SyncETag = newETag
			} else {
				inc.SyncETag = ""
			}
			return nil
		})
	}
	_ = g.Wait()

	var needMultiget []string
	for i, inc := range uploadCandidates {
		if err := results[i]; err != nil {
			if errors.Is(err, dav.ErrSoftFailure) {
				itemFailures++
				continue
			}
			itemFailures++
			continue
		}
		if inc.SyncETag == "" {
			needMultiget = append(needMultiget, inc.SyncURI)
		}
	}

	if len(needMultiget) > 0 {
		resources, err := a.Client.GetCalendarResourcesByHref(ctx, a.Notebook.RemotePath, needMultiget)
		if err == nil {
			byHref := make(map[string]string, len(resources))
			for _, r := range resources {
				byHref[r.Href] = r.ETag
			}
			for _, inc := range uploadCandidates {
				if etag, ok := byHref[inc.SyncURI]; ok {
					inc.SyncETag = etag
				}
			}
		}
	}

	// Every successfully-upsynced candidate, and every one of its
	// persistent exceptions, shares the same uri/etag: the server holds a
	// single resource for the whole series. Queue both for persistence in
	// Apply so the watermark survives under a backend that doesn't hand
	// back live pointers from ListIncidences.
	var watermarks []watermarkUpdate
	for i, inc := range uploadCandidates {
		if results[i] != nil {
			continue
		}
		watermarks = append(watermarks, watermarkUpdate{
			uid: inc.UID, recurrenceID: inc.RecurrenceID,
			uri: inc.SyncURI, etag: inc.SyncETag, detachedAndSynced: inc.DetachedAndSynced,
		})
		for _, s := range siblingsByCandidate[i] {
			watermarks = append(watermarks, watermarkUpdate{
				uid: s.UID, recurrenceID: s.RecurrenceID,
				uri: inc.SyncURI, etag: inc.SyncETag, detachedAndSynced: true,
			})
		}
	}

	return &Outcome{State: Postsync, ItemFailures: itemFailures}, watermarks
}

func groupByUID(incidences []*model.Incidence) map[string][]*model.Incidence {
	out := map[string][]*model.Incidence{}
	for _, x := range incidences {
		out[x.UID] = append(out[x.UID], x)
	}
	return out
}

func groupParent(group []*model.Incidence) *model.Incidence {
	for _, x := range group {
		if !x.IsException() {
			return x
		}
	}
	return nil
}

// groupExceptions returns every exception in group other than exclude
// itself (exclude is typically the parent being re-uploaded, or the
// exception being uploaded standalone).
func groupExceptions(group []*model.Incidence, exclude *model.Incidence) []*model.Incidence {
	var out []*model.Incidence
	for _, x := range group {
		if x == exclude || !x.IsException() {
			continue
		}
		out = append(out, x)
	}
	return out
}

// splitDeletions separates whole-series local deletions (the server has a
// resource to DELETE) from exception-only deletions (no standalone server
// resource; the containing series must be re-uploaded without them).
func splitDeletions(deletions []*model.Incidence) (wholeSeries, exceptionOnly []*model.Incidence) {
	for _, x := range deletions {
		if x.IsException() {
			exceptionOnly = append(exceptionOnly, x)
			continue
		}
		wholeSeries = append(wholeSeries, x)
	}
	return wholeSeries, exceptionOnly
}

// Apply performs the Applying step: persists buffered remote
// changes, writes back the uri/etag watermarks upsync harvested for
// locally-originated changes, advances the notebook's sync watermark to
// the instant captured before this cycle's remote fetch began, and — if
// the collection was found gone on the server — deletes the notebook
// locally. The orchestrator calls this only after every sibling notebook
// has reached Postsync or a terminal state.
func (a *Agent) Apply(ctx context.Context) error {
	if a.pending == nil {
		return nil
	}
	if a.pending.deleteNotebook {
		return a.Notebooks.DeleteNotebook(ctx, a.Notebook.ID)
	}

	for _, res := range a.pending.upserts {
		parent := res.Parent()
		siblings := res.Exceptions()
		if parent != nil {
			prepared := incidence.PrepareImportedIncidence(parent)
			prepared.SyncURI = res.Href
			prepared.SyncETag = res.ETag
			if err := a.Incidences.UpsertIncidence(ctx, a.Notebook.ID, prepared); err != nil {
				return fmt.Errorf("notebooksync: upserting %s: %w", prepared.UID, err)
			}
		}
		for _, exc := range siblings {
			prepared := incidence.PrepareImportedIncidence(exc)
			prepared.SyncURI = res.Href
			prepared.SyncETag = res.ETag
			prepared.DetachedAndSynced = true
			if err := a.Incidences.UpsertIncidence(ctx, a.Notebook.ID, prepared); err != nil {
				return fmt.Errorf("notebooksync: upserting exception %s: %w", prepared.UID, err)
			}
		}
	}

	for _, x := range a.pending.removals {
		if err := a.Incidences.DeleteIncidence(ctx, a.Notebook.ID, x.UID, x.RecurrenceID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("notebooksync: removing %s: %w", x.UID, err)
		}
	}

	for _, wm := range a.pending.watermarks {
		err := a.Incidences.SetWatermark(ctx, a.Notebook.ID, wm.uid, wm.recurrenceID, wm.uri, wm.etag, wm.detachedAndSynced)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("notebooksync: setting watermark for %s: %w", wm.uid, err)
		}
	}

	return a.Notebooks.SetLastSync(ctx, a.Notebook.ID, a.pending.syncStartedAt)
}
