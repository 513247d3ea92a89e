package dav

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// formatTimeRange renders a time-range boundary the way CalDAV REPORT bodies require:
// "yyyyMMddTHHmmss", suffixed "Z" when the instant is UTC.
func formatTimeRange(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	utc := t.UTC()
	return utc.Format("20060102T150405") + "Z"
}

func reportHeaders() map[string]string {
	return map[string]string{
		"Depth":        depthOne,
		"Content-Type": "application/xml; charset=utf-8",
	}
}

// calendarQueryBody builds the calendar-query REPORT body: a VEVENT
// time-range filter bounded by the sync window, with calendar-data in the
// requested properties only when includeData is true.
func calendarQueryBody(start, end time.Time, includeData bool) string {
	var props strings.Builder
	props.WriteString("<D:getetag/>")
	if includeData {
		props.WriteString("<C:calendar-data/>")
	}

	var timeRange string
	if !start.IsZero() || !end.IsZero() {
		timeRange = fmt.Sprintf(`<C:time-range start="%s" end="%s"/>`, formatTimeRange(start), formatTimeRange(end))
	}

	return xmlHeader + fmt.Sprintf(`<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop>
    %s
  </D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        %s
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`, props.String(), timeRange)
}

func calendarMultigetBody(hrefs []string) string {
	var b strings.Builder
	for _, h := range hrefs {
		b.WriteString("<D:href>")
		b.WriteString(xmlEscapeHref(h))
		b.WriteString("</D:href>\n    ")
	}
	return xmlHeader + fmt.Sprintf(`<C:calendar-multiget xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop>
    <D:getetag/>
    <C:calendar-data/>
  </D:prop>
  %s
</C:calendar-multiget>`, b.String())
}

func xmlEscapeHref(h string) string {
	h = strings.ReplaceAll(h, "&", "&amp;")
	h = strings.ReplaceAll(h, "<", "&lt;")
	h = strings.ReplaceAll(h, ">", "&gt;")
	return h
}

// reportCalendarQuery issues a calendar-query REPORT filtered by a VEVENT
// time-range, optionally requesting calendar-data (etag-only listing vs.
// full-resource fetch).
func (r *Requester) reportCalendarQuery(ctx context.Context, path string, start, end time.Time, includeData bool) (*Reply, error) {
	return r.DoHeaders(ctx, "REPORT", path, []byte(calendarQueryBody(start, end, includeData)), reportHeaders())
}

// reportCalendarMultiget fetches a named set of hrefs with etag +
// calendar-data.
func (r *Requester) reportCalendarMultiget(ctx context.Context, path string, hrefs []string) (*Reply, error) {
	return r.DoHeaders(ctx, "REPORT", path, []byte(calendarMultigetBody(hrefs)), reportHeaders())
}
