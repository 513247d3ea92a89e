// Package notebooksync implements the per-notebook sync agent (C7): the
// state machine driving one calendar collection through a sync cycle, and
// the delta calculation at its heart.
package notebooksync

import (
	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

const missingETagSentinel = "missing ETag"

// DeltaInput bundles everything ComputeDelta needs: the remote etag map
// for the sync window, the local incidence list and its deleted/modified-
// since-watermark subsets, and the previously-synced etag map used to
// classify remote hrefs that were never locally seen.
type DeltaInput struct {
	RemotePath string // e.g. "/calendars/user/personal/"

	// RemoteEtags is href -> etag, as returned by the etag-only REPORT for
	// the sync window.
	RemoteEtags map[string]string

	// PreviouslySyncedEtags is href -> etag, the full set of watermark
	// etags known from the last cycle, independent of the current window.
	PreviouslySyncedEtags map[string]string

	Local           []*model.Incidence // L
	LocallyDeleted  []*model.Incidence // D
	LocallyModified []*model.Incidence // M
}

// ComputeDelta implements the six-way delta algorithm, producing
// the six disjoint sets. RemoteAdditions/RemoteModifications are returned
// as hrefs: the caller fetches their bodies via calendar-multiget before
// they can be applied.
func ComputeDelta(in DeltaInput) *model.DeltaSet {
	out := &model.DeltaSet{}
	seen := map[string]bool{}

	localAdditionUIDs := map[string]bool{}
	deletedUIDs := map[string]bool{}

	for _, x := range in.Local {
		if !x.HasSyncWatermark() {
			computed := computeURI(in.RemotePath, x.UID)
			if _, exists := in.RemoteEtags[computed]; exists {
				seen[computed] = true
				x.SyncURI = computed
				x.SyncETag = missingETagSentinel
				out.RemoteModifications = append(out.RemoteModifications, computed)
				continue
			}
			out.LocalAdditions = append(out.LocalAdditions, x)
			localAdditionUIDs[incidenceKey(x)] = true
			continue
		}

		etag, exists := in.RemoteEtags[x.SyncURI]
		switch {
		case !exists:
			out.RemoteDeletions = append(out.RemoteDeletions, x)

		case x.IsException() && !x.DetachedAndSynced && etag == x.SyncETag:
			out.LocalAdditions = append(out.LocalAdditions, x)
			localAdditionUIDs[incidenceKey(x)] = true

		default:
			seen[x.SyncURI] = true
		}
	}

	for _, x := range in.LocallyDeleted {
		etag, exists := in.RemoteEtags[x.SyncURI]
		if exists && etag == x.SyncETag {
			if !x.HasSyncWatermark() {
				x.SyncURI = computeURI(in.RemotePath, x.UID)
				x.SyncETag = in.RemoteEtags[x.SyncURI]
			}
			out.LocalDeletions = append(out.LocalDeletions, x)
			deletedUIDs[incidenceKey(x)] = true
			seen[x.SyncURI] = true
		}
		// else: already gone remotely, or remotely modified since — ignore,
		// conflict resolves to remote (PreferRemote); the
		// unchanged href is left unseen so the remote loop below picks it
		// up as a remote addition/modification to re-pull.
	}

	for _, x := range in.LocallyModified {
		key := incidenceKey(x)
		if deletedUIDs[key] || localAdditionUIDs[key] {
			continue
		}

		if !x.HasSyncWatermark() {
			computed := computeURI(in.RemotePath, x.UID)
			if _, exists := in.RemoteEtags[computed]; exists {
				x.SyncURI = computed
				x.SyncETag = in.RemoteEtags[computed]
				out.LocalModifications = append(out.LocalModifications, x)
			}
			continue
		}

		etag, exists := in.RemoteEtags[x.SyncURI]
		if !exists {
			continue // conflict: remote deletion wins
		}
		if etag != x.SyncETag {
			continue // conflict: remote modification wins
		}
		out.LocalModifications = append(out.LocalModifications, x)
	}

	for href, etag := range in.RemoteEtags {
		if seen[href] {
			continue
		}
		prior, known := in.PreviouslySyncedEtags[href]
		switch {
		case !known:
			out.RemoteAdditions = append(out.RemoteAdditions, href)
		case prior != etag:
			out.RemoteModifications = append(out.RemoteModifications, href)
		}
		// else: unchanged, no entry in any set.
	}

	return out
}

func computeURI(remotePath, uid string) string {
	return remotePath + uid + ".ics"
}

func incidenceKey(x *model.Incidence) string {
	if x.RecurrenceID != nil {
		return x.UID + "#" + x.RecurrenceID.UTC().Format("20060102T150405Z")
	}
	return x.UID
}
