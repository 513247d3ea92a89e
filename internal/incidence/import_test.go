package incidence

import (
	"testing"
	"time"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

func TestPrepareImportedIncidenceSynthesizesMissingAllDayDTEnd(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	inc := &model.Incidence{UID: "event-1", AllDay: true, Start: &start}
	out := PrepareImportedIncidence(inc)
	if out.End == nil {
		t.Fatalf("expected DTEND to be synthesized")
	}
	if !out.End.Equal(start.Add(24 * time.Hour)) {
		t.Fatalf("expected synthesized DTEND to be one day after DTSTART, got %v", out.End)
	}
	if !out.DTEndSynthesized {
		t.Fatalf("expected DTEndSynthesized to be marked true")
	}
	if !out.AllDay {
		t.Fatalf("expected AllDay to survive the mutation")
	}
}

func TestPrepareImportedIncidenceLeavesExplicitDTEndAlone(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	inc := &model.Incidence{UID: "event-1", AllDay: true, Start: &start, End: &end}
	out := PrepareImportedIncidence(inc)
	if !out.End.Equal(end) {
		t.Fatalf("expected explicit DTEND to be left untouched, got %v", out.End)
	}
	if out.DTEndSynthesized {
		t.Fatalf("expected DTEndSynthesized to remain false when DTEND was already present")
	}
}

func TestPrepareImportedIncidenceLeavesTimedEventsAlone(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	inc := &model.Incidence{UID: "event-1", Start: &start}
	out := PrepareImportedIncidence(inc)
	if out.End != nil {
		t.Fatalf("expected a timed event without DTEND to stay nil, got %v", out.End)
	}
}
