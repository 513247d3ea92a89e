package model

import "time"

// Kind is the calendar-object kind of an Incidence.
type Kind int

const (
	KindEvent Kind = iota
	KindTodo
	KindJournal
)

// Attendee is a calendar-object attendee.
type Attendee struct {
	Email    string
	FullName string
}

// Alarm is a VALARM attached to an incidence. OffsetSeconds is relative to
// the incidence start (negative = before).
type Alarm struct {
	OffsetSeconds int
	Action        string
}

// Attachment is a VALARM/VEVENT attachment reference.
type Attachment struct {
	URI      string
	MimeType string
}

// Incidence is the calendar-object model. Identity is (UID, RecurrenceID).
//
// The sync watermarks are first-class fields here rather than smuggled
// through the incidence's comment list: SyncURI, SyncETag, DetachedAndSynced.
// A storage backend unable to add columns for these may instead persist
// them in a side table keyed by (NotebookID, UID, RecurrenceID).
type Incidence struct {
	UID          string
	RecurrenceID *time.Time
	Kind         Kind

	Start, End *time.Time
	Due        *time.Time
	AllDay     bool

	// DTEndSynthesized marks that End was synthesized on import as Start
	// plus one day (not as a copy of Start) for an all-day event missing
	// DTEND; export drops DTEND again while End still equals Start plus one
	// day.
	DTEndSynthesized bool

	RRule    string
	ExRule   string
	ExDates  []time.Time
	RDates   []time.Time

	Attendees   []Attendee
	Organizer   Attendee
	Alarms      []Alarm
	Attachments []Attachment

	Status  string
	Summary string

	// CustomProps holds vendor extension properties (X-*), keyed without
	// the leading "X-". A legacy "buteo"-prefixed entry here is stripped by
	// IncidenceToExport.
	CustomProps map[string]string

	// Comments is the calendar-object COMMENT property list. It is no
	// longer used as a watermark side-channel (see SyncURI/SyncETag
	// below); this field holds genuine user-authored comments only.
	Comments []string

	Revision int64

	// --- sync watermarks (redesigned as first-class fields) ---

	// SyncURI is the server URI last known for this incidence, an absolute
	// server path prefixed by the containing calendar's remote path. Empty
	// for an incidence that has never been upsynced.
	SyncURI string

	// SyncETag is the server etag last observed for SyncURI.
	SyncETag string

	// DetachedAndSynced distinguishes a persistent exception that was
	// dissociated during a previous sync (known to the server, so a etag
	// match against the series means "no real change") from one dissociated
	// locally by the user since the last sync (a pending local addition).
	DetachedAndSynced bool
}

// IsException reports whether this incidence is a persistent exception
// occurrence rather than a series parent or standalone incidence.
func (i *Incidence) IsException() bool {
	return i.RecurrenceID != nil
}

// HasSyncWatermark reports whether this incidence has ever been upsynced or
// downsynced, i.e. the server identity is known.
func (i *Incidence) HasSyncWatermark() bool {
	return i.SyncURI != ""
}

// Clone returns a deep-enough copy for building export clones in ToICS:
// slices are copied so mutating the clone (clearing recurrence,
// retargeting RecurrenceID) never touches the original.
func (i *Incidence) Clone() *Incidence {
	c := *i
	if i.RecurrenceID != nil {
		rid := *i.RecurrenceID
		c.RecurrenceID = &rid
	}
	if i.Start != nil {
		s := *i.Start
		c.Start = &s
	}
	if i.End != nil {
		e := *i.End
		c.End = &e
	}
	if i.Due != nil {
		d := *i.Due
		c.Due = &d
	}
	c.ExDates = append([]time.Time(nil), i.ExDates...)
	c.RDates = append([]time.Time(nil), i.RDates...)
	c.Attendees = append([]Attendee(nil), i.Attendees...)
	c.Alarms = append([]Alarm(nil), i.Alarms...)
	c.Attachments = append([]Attachment(nil), i.Attachments...)
	c.Comments = append([]string(nil), i.Comments...)
	c.CustomProps = make(map[string]string, len(i.CustomProps))
	for k, v := range i.CustomProps {
		c.CustomProps[k] = v
	}
	return &c
}
