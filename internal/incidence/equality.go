package incidence

import (
	"sort"
	"time"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// SemanticEqual reports whether a and b are semantically equal for
// spurious-modification detection: true when every
// exported property matches after running both through IncidenceToExport.
// This is what lets the notebook sync agent discard a "possible local
// modification" whose only real change is the uri/etag watermark written
// back after the previous upsync.
func SemanticEqual(a, b *model.Incidence, notebookUID string, aSiblings, bSiblings []*model.Incidence) bool {
	ea := IncidenceToExport(a, notebookUID, aSiblings)
	eb := IncidenceToExport(b, notebookUID, bSiblings)
	return exportEqual(ea, eb)
}

func exportEqual(a, b *model.Incidence) bool {
	switch {
	case a.UID != b.UID,
		a.Kind != b.Kind,
		!timePtrEqual(a.Start, b.Start),
		!timePtrEqual(a.End, b.End),
		!timePtrEqual(a.Due, b.Due),
		a.AllDay != b.AllDay,
		!timePtrEqual(a.RecurrenceID, b.RecurrenceID),
		a.RRule != b.RRule,
		a.ExRule != b.ExRule,
		a.Summary != b.Summary,
		a.Status != b.Status,
		a.Organizer != b.Organizer:
		return false
	}
	if !timeSetEqual(a.ExDates, b.ExDates) || !timeSetEqual(a.RDates, b.RDates) {
		return false
	}
	if !attendeeSetEqual(a.Attendees, b.Attendees) {
		return false
	}
	if !alarmSetEqual(a.Alarms, b.Alarms) {
		return false
	}
	if !stringSetEqual(a.Comments, b.Comments) {
		return false
	}
	if !customPropsEqual(a.CustomProps, b.CustomProps) {
		return false
	}
	return true
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func timeSetEqual(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]time.Time(nil), a...)
	bs := append([]time.Time(nil), b...)
	sort.Slice(as, func(i, j int) bool { return as[i].Before(as[j]) })
	sort.Slice(bs, func(i, j int) bool { return bs[i].Before(bs[j]) })
	for i := range as {
		if !as[i].Equal(bs[i]) {
			return false
		}
	}
	return true
}

func attendeeSetEqual(a, b []model.Attendee) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]model.Attendee(nil), a...)
	bs := append([]model.Attendee(nil), b...)
	sort.Slice(as, func(i, j int) bool { return as[i].Email < as[j].Email })
	sort.Slice(bs, func(i, j int) bool { return bs[i].Email < bs[j].Email })
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func alarmSetEqual(a, b []model.Alarm) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]model.Alarm(nil), a...)
	bs := append([]model.Alarm(nil), b...)
	sort.Slice(as, func(i, j int) bool { return as[i].OffsetSeconds < as[j].OffsetSeconds })
	sort.Slice(bs, func(i, j int) bool { return bs[i].OffsetSeconds < bs[j].OffsetSeconds })
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func customPropsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
