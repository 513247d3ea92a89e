package model

import "time"

// Notebook is the local container representing one remote calendar
// collection. Created by the orchestrator's notebook merge when the
// collection is first listed, before any sync of it has run; deleted when
// the server reports the collection gone; otherwise updated each cycle.
type Notebook struct {
	ID         string
	AccountID  string
	RemotePath string

	LastSync time.Time // zero value means "never synced" -> slow sync

	PluginTag         string
	OrganizerEmail    string
	Color             string
	AllowedComponents []ComponentKind
}

// NeedsSlowSync reports whether this notebook has never completed a sync
// cycle, in which case the agent must perform a full download rather than
// an etag-based delta.
func (n *Notebook) NeedsSlowSync() bool {
	return n.LastSync.IsZero()
}

// DeltaSet holds the six disjoint change sets computed once per notebook
// per cycle.
type DeltaSet struct {
	LocalAdditions    []*Incidence
	LocalModifications []*Incidence
	LocalDeletions    []*Incidence

	RemoteAdditions    []string // hrefs
	RemoteModifications []string // hrefs
	RemoteDeletions    []*Incidence
}

// Empty reports whether every set in d is empty — the expected outcome of a
// quick sync where nothing changed on either side.
func (d *DeltaSet) Empty() bool {
	return len(d.LocalAdditions) == 0 &&
		len(d.LocalModifications) == 0 &&
		len(d.LocalDeletions) == 0 &&
		len(d.RemoteAdditions) == 0 &&
		len(d.RemoteModifications) == 0 &&
		len(d.RemoteDeletions) == 0
}
