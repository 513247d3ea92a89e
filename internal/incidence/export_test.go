package incidence

import (
	"testing"
	"time"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

func TestIncidenceToExportStripsNotebookUIDPrefix(t *testing.T) {
	inc := &model.Incidence{UID: "NBUID:notebook-1:event-1", CustomProps: map[string]string{}}
	out := IncidenceToExport(inc, "notebook-1", nil)
	if out.UID != "event-1" {
		t.Fatalf("expected prefix stripped, got %q", out.UID)
	}
	if inc.UID != "NBUID:notebook-1:event-1" {
		t.Fatalf("expected IncidenceToExport to not mutate its input")
	}
}

func TestIncidenceToExportStripsButeoPropsAndComments(t *testing.T) {
	inc := &model.Incidence{
		UID: "event-1",
		CustomProps: map[string]string{
			"BUTEO-DETACHED": "1",
			"KEEP-ME":        "yes",
		},
		Comments: []string{"buteo:caldav:uri=/foo.ics", "a real comment"},
	}
	out := IncidenceToExport(inc, "", nil)
	if _, ok := out.CustomProps["BUTEO-DETACHED"]; ok {
		t.Fatalf("expected buteo-prefixed custom prop to be stripped")
	}
	if _, ok := out.CustomProps["KEEP-ME"]; !ok {
		t.Fatalf("expected non-buteo custom prop to survive")
	}
	if len(out.Comments) != 1 || out.Comments[0] != "a real comment" {
		t.Fatalf("expected only the real comment to survive, got %v", out.Comments)
	}
}

func TestIncidenceToExportDropsOrganizerAsAttendee(t *testing.T) {
	organizer := model.Attendee{Email: "boss@example.com", FullName: "Boss"}
	inc := &model.Incidence{
		UID:       "event-1",
		Organizer: organizer,
		Attendees: []model.Attendee{
			organizer,
			{Email: "other@example.com", FullName: "Other"},
		},
		CustomProps: map[string]string{},
	}
	out := IncidenceToExport(inc, "", nil)
	if len(out.Attendees) != 1 {
		t.Fatalf("expected organizer to be removed from attendees, got %v", out.Attendees)
	}
	if out.Attendees[0].Email != "other@example.com" {
		t.Fatalf("unexpected remaining attendee: %v", out.Attendees[0])
	}
}

func TestIncidenceToExportDropsExDatesMatchingSiblingExceptions(t *testing.T) {
	matched := time.Date(2026, 8, 8, 9, 0, 0, 0, time.UTC)
	unmatched := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	inc := &model.Incidence{
		UID:         "event-1",
		ExDates:     []time.Time{matched, unmatched},
		CustomProps: map[string]string{},
	}
	sibling := &model.Incidence{UID: "event-1", RecurrenceID: &matched}
	out := IncidenceToExport(inc, "", []*model.Incidence{sibling})
	if len(out.ExDates) != 1 || !out.ExDates[0].Equal(unmatched) {
		t.Fatalf("expected only the unmatched exdate to survive, got %v", out.ExDates)
	}
}

func TestIncidenceToExportLeavesAlarmOffsetsUnchanged(t *testing.T) {
	inc := &model.Incidence{
		UID: "event-1",
		Alarms: []model.Alarm{
			{OffsetSeconds: -86400, Action: "DISPLAY"},
			{OffsetSeconds: -900, Action: "DISPLAY"},
		},
		CustomProps: map[string]string{},
	}
	out := IncidenceToExport(inc, "", nil)
	if out.Alarms[0].OffsetSeconds != -86400 {
		t.Fatalf("expected whole-day offset unchanged, got %d", out.Alarms[0].OffsetSeconds)
	}
	if out.Alarms[1].OffsetSeconds != -900 {
		t.Fatalf("expected non-day offset unchanged, got %d", out.Alarms[1].OffsetSeconds)
	}
}

func TestIncidenceToExportRemovesSynthesizedAllDayDTEnd(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	inc := &model.Incidence{
		UID:              "event-1",
		AllDay:           true,
		Start:            &start,
		End:              &end,
		DTEndSynthesized: true,
		CustomProps:      map[string]string{},
	}
	out := IncidenceToExport(inc, "", nil)
	if out.End != nil {
		t.Fatalf("expected synthesized all-day DTEND to be removed before export, got %v", out.End)
	}
}

func TestIncidenceToExportKeepsExplicitAllDayDTEnd(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	inc := &model.Incidence{
		UID:         "event-1",
		AllDay:      true,
		Start:       &start,
		End:         &end,
		CustomProps: map[string]string{},
	}
	out := IncidenceToExport(inc, "", nil)
	if out.End == nil || !out.End.Equal(end) {
		t.Fatalf("expected a genuine multi-day DTEND to survive export, got %v", out.End)
	}
}
