package incidence

import (
	"time"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// PrepareImportedIncidence is applied to every incidence decoded from a
// server response before it reaches the local store or the delta
// calculator: for all-day events missing DTEND, synthesize
// DTEND := DTSTART+1day (the RFC 5545 default duration for a DATE-valued
// DTSTART with no DTEND) and mark it so export can remove it again. The
// all-day flag itself is re-asserted explicitly rather than relied on to
// survive the assignment, since later pipeline stages (exception
// retargeting in ToICS) reassign Start/End on a clone and must not
// silently lose it. fromVEvent already performs this same synthesis while
// decoding, so this is usually a no-op; it exists for incidences built by
// other paths that skip that step.
func PrepareImportedIncidence(inc *model.Incidence) *model.Incidence {
	wasAllDay := inc.AllDay
	if inc.AllDay && inc.End == nil && inc.Start != nil {
		synthesized := inc.Start.Add(24 * time.Hour)
		inc.End = &synthesized
		inc.DTEndSynthesized = true
	}
	inc.AllDay = wasAllDay
	return inc
}
