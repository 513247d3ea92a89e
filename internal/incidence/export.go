package incidence

import (
	"strings"
	"time"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

const buteoCommentPrefix = "buteo:caldav:"

// IncidenceToExport normalizes one incidence for upload.
// notebookUID is the owning notebook's UID, used to strip the internal
// "NBUID:<notebookUID>:" naming prefix. siblings is every other incidence
// sharing the same resource (used for the exdate/recurrenceId dedup step);
// pass nil for a standalone incidence.
//
// The watermark fields (SyncURI/SyncETag/DetachedAndSynced) never reach
// the wire, since they're first-class store fields, not wire properties — there is
// nothing to strip for them. The stripping below only guards against
// legacy "buteo" custom-property/comment markers a store may still carry
// from a legacy comment-list encoding some stores may still carry.
func IncidenceToExport(inc *model.Incidence, notebookUID string, siblings []*model.Incidence) *model.Incidence {
	out := inc.Clone()

	out.UID = stripNotebookUIDPrefix(out.UID, notebookUID)
	out.CustomProps = stripButeoProps(out.CustomProps)
	out.Comments = stripButeoComments(out.Comments)
	out.Attendees = dropOrganizerAsAttendee(out.Attendees, out.Organizer)
	out.ExDates = dropExDatesMatchingSiblings(out.ExDates, siblings)

	if out.AllDay && out.DTEndSynthesized && out.End != nil && out.Start != nil && out.End.Equal(out.Start.Add(24*time.Hour)) {
		out.End = nil
	}

	return out
}

func stripNotebookUIDPrefix(uid, notebookUID string) string {
	if notebookUID == "" {
		return uid
	}
	prefix := "NBUID:" + notebookUID + ":"
	return strings.TrimPrefix(uid, prefix)
}

func stripButeoProps(props map[string]string) map[string]string {
	if props == nil {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		if strings.HasPrefix(strings.ToLower(k), "buteo") {
			continue
		}
		out[k] = v
	}
	return out
}

func stripButeoComments(comments []string) []string {
	var out []string
	for _, c := range comments {
		if strings.HasPrefix(c, buteoCommentPrefix) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// dropOrganizerAsAttendee removes an attendee entry whose email and full
// name match the organizer: the local store injects the organizer as an
// attendee internally, but uploading it that way causes servers to treat
// the event as schedulable.
func dropOrganizerAsAttendee(attendees []model.Attendee, organizer model.Attendee) []model.Attendee {
	if organizer.Email == "" {
		return attendees
	}
	var out []model.Attendee
	for _, a := range attendees {
		if strings.EqualFold(a.Email, organizer.Email) && a.FullName == organizer.FullName {
			continue
		}
		out = append(out, a)
	}
	return out
}

// dropExDatesMatchingSiblings removes exdate entries whose instant equals
// any sibling's RecurrenceID: that occurrence is represented by the
// exception resource itself, not by an exdate on the parent.
func dropExDatesMatchingSiblings(exDates []time.Time, siblings []*model.Incidence) []time.Time {
	if len(siblings) == 0 {
		return exDates
	}
	excluded := make(map[int64]bool, len(siblings))
	for _, s := range siblings {
		if s.RecurrenceID != nil {
			excluded[s.RecurrenceID.Unix()] = true
		}
	}
	var out []time.Time
	for _, d := range exDates {
		if !excluded[d.Unix()] {
			out = append(out, d)
		}
	}
	return out
}

// Alarm offsets need no export-time normalization: model.Alarm carries
// OffsetSeconds as a plain integer, so "-P1D" and "-PT86400S" already parse
// to the same -86400 value in parseDurationSeconds, and toVAlarm alone
// decides whether to emit it back out as "P1D" or "PT86400S" (whole days
// render as "<n>D", see formatDurationSeconds). There is no day/seconds
// unit distinction carried on the model for an export pass to normalize.
