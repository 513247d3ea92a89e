package incidence

import (
	"testing"
	"time"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

func TestSemanticEqualIgnoresWatermarkOnlyDifferences(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	a := &model.Incidence{
		UID: "event-1", Start: &start, Summary: "Standup",
		CustomProps: map[string]string{}, SyncURI: "", SyncETag: "",
	}
	b := &model.Incidence{
		UID: "event-1", Start: &start, Summary: "Standup",
		CustomProps: map[string]string{}, SyncURI: "/cal/event-1.ics", SyncETag: "\"abc\"",
		DetachedAndSynced: true,
	}
	if !SemanticEqual(a, b, "", nil, nil) {
		t.Fatalf("expected incidences differing only in sync watermarks to compare equal")
	}
}

func TestSemanticEqualDetectsRealSummaryChange(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	a := &model.Incidence{UID: "event-1", Start: &start, Summary: "Standup", CustomProps: map[string]string{}}
	b := &model.Incidence{UID: "event-1", Start: &start, Summary: "Standup (moved)", CustomProps: map[string]string{}}
	if SemanticEqual(a, b, "", nil, nil) {
		t.Fatalf("expected a real summary change to be detected")
	}
}

func TestSemanticEqualIgnoresAttendeeOrder(t *testing.T) {
	alice := model.Attendee{Email: "alice@example.com"}
	bob := model.Attendee{Email: "bob@example.com"}
	a := &model.Incidence{UID: "event-1", Attendees: []model.Attendee{alice, bob}, CustomProps: map[string]string{}}
	b := &model.Incidence{UID: "event-1", Attendees: []model.Attendee{bob, alice}, CustomProps: map[string]string{}}
	if !SemanticEqual(a, b, "", nil, nil) {
		t.Fatalf("expected attendee order to be irrelevant to equality")
	}
}

func TestSemanticEqualIgnoresButeoOnlyCustomProps(t *testing.T) {
	a := &model.Incidence{UID: "event-1", CustomProps: map[string]string{"buteo-detached": "1"}}
	b := &model.Incidence{UID: "event-1", CustomProps: map[string]string{}}
	if !SemanticEqual(a, b, "", nil, nil) {
		t.Fatalf("expected buteo-only custom prop differences to be stripped before comparison")
	}
}

func TestTimePtrEqualHandlesNils(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !timePtrEqual(nil, nil) {
		t.Fatalf("expected nil == nil")
	}
	if timePtrEqual(&ts, nil) || timePtrEqual(nil, &ts) {
		t.Fatalf("expected nil != non-nil")
	}
	other := ts
	if !timePtrEqual(&ts, &other) {
		t.Fatalf("expected equal instants to compare equal")
	}
}
