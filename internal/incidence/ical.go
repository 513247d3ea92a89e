// Package incidence implements the pure conversion functions between the
// internal calendar model and the iCalendar wire representation for one
// recurring series: building a VCALENDAR from a parent
// plus its persistent exceptions, and parsing a VCALENDAR back into the
// (parent, exceptions) the notebook sync agent operates on.
//
// The iCalendar codec itself is a black box: all encoding/decoding goes
// through github.com/emersion/go-ical, the same library the rest of the
// example pack's CalDAV clients standardize on.
package incidence

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

const bcastUIDPrefix = "NBUID:"

// ParseCalendarObject decodes one VCALENDAR payload into the list of
// incidences it carries: every VEVENT in the payload.
// All incidences must share a UID; if any VEVENT disagrees, the caller
// learns about it through distinct return values rather than a single
// opaque error, so a differing-UID VEVENT is surfaced distinctly from a
// parse failure rather than silently discarded:
//
//   - ok=true: every VEVENT shared a UID, incidences is fully populated.
//   - ok=false, err=nil: a later VEVENT's UID disagreed with the first; the
//     disagreeing VEVENTs are already left out of incidences, and the caller
//     warns rather than failing the sync (this is a common producer bug that
//     emits the same event twice).
//   - err != nil: the payload was not valid iCalendar at all.
func ParseCalendarObject(data string) (incidences []*model.Incidence, ok bool, err error) {
	dec := ical.NewDecoder(strings.NewReader(data))
	cal, err := dec.Decode()
	if err != nil {
		return nil, false, fmt.Errorf("incidence: decoding calendar object: %w", err)
	}

	var uid string
	ok = true
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		inc, convErr := fromVEvent(child)
		if convErr != nil {
			return nil, false, fmt.Errorf("incidence: %w", convErr)
		}
		if uid == "" {
			uid = inc.UID
		} else if inc.UID != uid {
			ok = false
			continue
		}
		incidences = append(incidences, inc)
	}
	return incidences, ok, nil
}

func fromVEvent(c *ical.Component) (*model.Incidence, error) {
	inc := &model.Incidence{Kind: model.KindEvent, CustomProps: map[string]string{}}

	uid, err := c.Props.Text(ical.PropUID)
	if err != nil {
		return nil, fmt.Errorf("missing UID: %w", err)
	}
	inc.UID = uid

	if summary, err := c.Props.Text(ical.PropSummary); err == nil {
		inc.Summary = summary
	}
	if status, err := c.Props.Text(ical.PropStatus); err == nil {
		inc.Status = status
	}

	if start, allDay, ok := propDateTime(c, ical.PropDateTimeStart); ok {
		inc.Start = &start
		inc.AllDay = allDay
	}
	if end, _, ok := propDateTime(c, ical.PropDateTimeEnd); ok {
		inc.End = &end
	} else if inc.AllDay && inc.Start != nil {
		synthesized := inc.Start.Add(24 * time.Hour)
		inc.End = &synthesized
		inc.DTEndSynthesized = true
	}
	if rid, _, ok := propDateTime(c, ical.PropRecurrenceID); ok {
		inc.RecurrenceID = &rid
	}

	if rrule, err := c.Props.Text(ical.PropRecurrenceRule); err == nil {
		inc.RRule = rrule
	}
	for _, p := range c.Props.Values(ical.PropExceptionDates) {
		if t, err := p.DateTime(time.UTC); err == nil {
			inc.ExDates = append(inc.ExDates, t)
		}
	}

	if org := c.Props.Get(ical.PropOrganizer); org != nil {
		inc.Organizer = parseAttendeeProp(org)
	}
	for _, p := range c.Props.Values(ical.PropAttendee) {
		inc.Attendees = append(inc.Attendees, parseAttendeeProp(&p))
	}
	for _, p := range c.Props.Values(ical.PropComment) {
		inc.Comments = append(inc.Comments, p.Value)
	}

	for _, child := range c.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		alarm := model.Alarm{}
		if action, err := child.Props.Text(ical.PropAction); err == nil {
			alarm.Action = action
		}
		if trig := child.Props.Get(ical.PropTrigger); trig != nil {
			alarm.OffsetSeconds = parseDurationSeconds(trig.Value)
		}
		inc.Alarms = append(inc.Alarms, alarm)
	}

	for name, props := range c.Props {
		if !strings.HasPrefix(name, "X-") {
			continue
		}
		if len(props) > 0 {
			inc.CustomProps[strings.TrimPrefix(name, "X-")] = props[0].Value
		}
	}

	return inc, nil
}

func propDateTime(c *ical.Component, name string) (t time.Time, allDay bool, ok bool) {
	p := c.Props.Get(name)
	if p == nil {
		return time.Time{}, false, false
	}
	t, err := p.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, false, false
	}
	allDay = p.Params.Get("VALUE") == "DATE"
	return t, allDay, true
}

func parseAttendeeProp(p *ical.Prop) model.Attendee {
	a := model.Attendee{}
	v := p.Value
	if strings.HasPrefix(strings.ToLower(v), "mailto:") {
		v = v[len("mailto:"):]
	}
	a.Email = v
	a.FullName = p.Params.Get("CN")
	return a
}

// parseDurationSeconds parses a minimal subset of ISO-8601 durations
// ("-PT15M", "P1D") sufficient for VALARM TRIGGER offsets.
func parseDurationSeconds(v string) int {
	neg := strings.HasPrefix(v, "-")
	v = strings.TrimPrefix(v, "-")
	v = strings.TrimPrefix(v, "+")
	v = strings.TrimPrefix(v, "P")

	var seconds int
	var timePart string
	if idx := strings.Index(v, "T"); idx >= 0 {
		timePart = v[idx+1:]
		v = v[:idx]
	}
	seconds += parseDurationUnits(v, map[byte]int{'D': 86400, 'W': 7 * 86400})
	seconds += parseDurationUnits(timePart, map[byte]int{'H': 3600, 'M': 60, 'S': 1})

	if neg {
		seconds = -seconds
	}
	return seconds
}

func parseDurationUnits(s string, units map[byte]int) int {
	total := 0
	num := ""
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			num += string(c)
			continue
		}
		if mul, ok := units[c]; ok && num != "" {
			n, _ := strconv.Atoi(num)
			total += n * mul
		}
		num = ""
	}
	return total
}

// ToICS builds an in-memory VCALENDAR containing parent plus one clone per
// exception, serialized as a single iCalendar stream.
//
// Each exception clone is built by cloning parent, clearing its recurrence
// rule/exdates/rdates, retargeting DTSTART and RECURRENCE-ID from the
// exception's RecurrenceID, then copying the real exception's own
// properties over the clone. Exceptions must not appear in the parent's
// EXDATE set; any such entries are dropped here.
func ToICS(parent *model.Incidence, exceptions []*model.Incidence) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//synccal/caldav-notebook-sync//EN")

	parentExport := stripExDatesMatchingExceptions(parent, exceptions)
	cal.Children = append(cal.Children, toVEvent(parentExport))

	for _, exc := range exceptions {
		clone := parent.Clone()
		clone.RRule = ""
		clone.ExRule = ""
		clone.ExDates = nil
		clone.RDates = nil
		clone.RecurrenceID = exc.RecurrenceID
		if exc.RecurrenceID != nil {
			rid := *exc.RecurrenceID
			clone.Start = &rid
		}
		copyExceptionProperties(clone, exc)
		cal.Children = append(cal.Children, toVEvent(clone))
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("incidence: encoding calendar: %w", err)
	}
	return buf.String(), nil
}

func stripExDatesMatchingExceptions(parent *model.Incidence, exceptions []*model.Incidence) *model.Incidence {
	if len(exceptions) == 0 {
		return parent
	}
	excluded := make(map[int64]bool, len(exceptions))
	for _, e := range exceptions {
		if e.RecurrenceID != nil {
			excluded[e.RecurrenceID.Unix()] = true
		}
	}
	clone := parent.Clone()
	filtered := clone.ExDates[:0]
	for _, d := range clone.ExDates {
		if !excluded[d.Unix()] {
			filtered = append(filtered, d)
		}
	}
	clone.ExDates = filtered
	return clone
}

// copyExceptionProperties overlays exc's own content properties onto clone,
// which already carries the parent's structural properties (organizer,
// alarms, attachments) and the retargeted DTSTART/RECURRENCE-ID. The
// exception's own DTSTART, when set, replaces the retargeted one.
func copyExceptionProperties(clone, exc *model.Incidence) {
	clone.Summary = exc.Summary
	clone.Status = exc.Status
	if exc.Start != nil {
		clone.Start = exc.Start
	}
	if exc.End != nil {
		clone.End = exc.End
	}
	if exc.AllDay {
		clone.AllDay = true
	}
	clone.Attendees = exc.Attendees
	clone.Comments = exc.Comments
	for k, v := range exc.CustomProps {
		clone.CustomProps[k] = v
	}
}

func toVEvent(inc *model.Incidence) *ical.Component {
	c := ical.NewComponent(ical.CompEvent)
	c.Props.SetText(ical.PropUID, inc.UID)
	if inc.Summary != "" {
		c.Props.SetText(ical.PropSummary, inc.Summary)
	}
	if inc.Status != "" {
		c.Props.SetText(ical.PropStatus, inc.Status)
	}
	if inc.Start != nil {
		setDateTime(c, ical.PropDateTimeStart, *inc.Start, inc.AllDay)
	}
	if inc.End != nil && !(inc.DTEndSynthesized && inc.Start != nil && inc.End.Equal(inc.Start.Add(24*time.Hour))) {
		setDateTime(c, ical.PropDateTimeEnd, *inc.End, inc.AllDay)
	}
	if inc.RecurrenceID != nil {
		setDateTime(c, ical.PropRecurrenceID, *inc.RecurrenceID, inc.AllDay)
	}
	if inc.RRule != "" {
		c.Props.SetText(ical.PropRecurrenceRule, inc.RRule)
	}
	for _, d := range inc.ExDates {
		p := ical.NewProp(ical.PropExceptionDates)
		p.SetDateTime(d)
		c.Props.Add(*p)
	}
	if inc.Organizer.Email != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + inc.Organizer.Email
		if inc.Organizer.FullName != "" {
			p.Params.Set("CN", inc.Organizer.FullName)
		}
		c.Props.Add(*p)
	}
	for _, a := range inc.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + a.Email
		if a.FullName != "" {
			p.Params.Set("CN", a.FullName)
		}
		c.Props.Add(*p)
	}
	for _, cm := range inc.Comments {
		c.Props.SetText(ical.PropComment, cm)
	}
	for k, v := range inc.CustomProps {
		c.Props.SetText("X-"+k, v)
	}
	for _, al := range inc.Alarms {
		c.Children = append(c.Children, toVAlarm(al))
	}
	return c
}

func toVAlarm(a model.Alarm) *ical.Component {
	c := ical.NewComponent(ical.CompAlarm)
	if a.Action != "" {
		c.Props.SetText(ical.PropAction, a.Action)
	}
	trigger := formatDurationSeconds(a.OffsetSeconds)
	c.Props.SetText(ical.PropTrigger, trigger)
	return c
}

func formatDurationSeconds(seconds int) string {
	neg := seconds < 0
	if neg {
		seconds = -seconds
	}
	days := seconds / 86400
	rem := seconds % 86400
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if rem > 0 || days == 0 {
		b.WriteByte('T')
		h := rem / 3600
		rem %= 3600
		m := rem / 60
		s := rem % 60
		if h > 0 {
			fmt.Fprintf(&b, "%dH", h)
		}
		if m > 0 {
			fmt.Fprintf(&b, "%dM", m)
		}
		if s > 0 || (h == 0 && m == 0) {
			fmt.Fprintf(&b, "%dS", s)
		}
	}
	return b.String()
}

func setDateTime(c *ical.Component, name string, t time.Time, allDay bool) {
	p := ical.NewProp(name)
	if allDay {
		p.Params.Set("VALUE", "DATE")
		p.Value = t.Format("20060102")
	} else {
		p.SetDateTime(t)
	}
	c.Props.Add(*p)
}
