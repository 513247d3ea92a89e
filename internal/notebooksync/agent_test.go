package notebooksync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/synccal/caldav-notebook-sync/internal/dav"
	"github.com/synccal/caldav-notebook-sync/internal/store/memstore"
	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

const reportMultistatusOneEvent = `<?xml version="1.0"?>
<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <response>
    <href>/calendars/user/personal/event-1.ics</href>
    <propstat>
      <prop>
        <getetag>"etag-1"</getetag>
        <C:calendar-data>BEGIN:VCALENDAR&#13;
VERSION:2.0&#13;
BEGIN:VEVENT&#13;
UID:event-1&#13;
SUMMARY:Standup&#13;
DTSTART:20260801T090000Z&#13;
DTEND:20260801T093000Z&#13;
END:VEVENT&#13;
END:VCALENDAR&#13;
</C:calendar-data>
      </prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`

func newTestAgent(t *testing.T, handler http.HandlerFunc, nb *model.Notebook, db *memstore.Store) (*Agent, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	client := dav.NewClient(&model.Settings{ServerURL: ts.URL}, zerolog.Nop())
	agent := NewAgent(nb, client, db, db, zerolog.Nop())
	agent.WindowFrom = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	agent.WindowTo = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	return agent, ts
}

func TestAgentSlowSyncThenApplyPersistsIncidence(t *testing.T) {
	db := memstore.New()
	nb := &model.Notebook{ID: "nb-1", AccountID: "acct-1", RemotePath: "/calendars/user/personal/"}
	if err := db.UpsertNotebook(context.Background(), nb); err != nil {
		t.Fatalf("seeding notebook: %v", err)
	}

	agent, ts := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "REPORT" {
			t.Fatalf("expected a REPORT request, got %s", r.Method)
		}
		w.Write([]byte(reportMultistatusOneEvent))
	}, nb, db)
	defer ts.Close()

	outcome := agent.RunUntilPostsync(context.Background())
	if outcome.State != Postsync {
		t.Fatalf("expected Postsync, got %v (err=%v)", outcome.State, outcome.Err)
	}

	if err := agent.Apply(context.Background()); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	stored, err := db.ListIncidences(context.Background(), "nb-1")
	if err != nil {
		t.Fatalf("ListIncidences error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored incidence, got %d", len(stored))
	}
	if stored[0].UID != "event-1" {
		t.Fatalf("unexpected UID: %q", stored[0].UID)
	}
	if stored[0].SyncETag != "etag-1" {
		t.Fatalf("expected watermark etag to be persisted, got %q", stored[0].SyncETag)
	}

	updated, err := db.GetNotebook(context.Background(), "nb-1")
	if err != nil {
		t.Fatalf("GetNotebook error: %v", err)
	}
	if updated.LastSync.IsZero() {
		t.Fatalf("expected LastSync to be advanced after Apply")
	}
}

func TestAgentClassifiesCollectionGoneAsNotebookDeletion(t *testing.T) {
	db := memstore.New()
	nb := &model.Notebook{ID: "nb-1", AccountID: "acct-1", RemotePath: "/calendars/user/gone/"}
	if err := db.UpsertNotebook(context.Background(), nb); err != nil {
		t.Fatalf("seeding notebook: %v", err)
	}

	agent, ts := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, nb, db)
	defer ts.Close()

	outcome := agent.RunUntilPostsync(context.Background())
	if outcome.State != Postsync || !outcome.DeleteNotebook {
		t.Fatalf("expected a Postsync outcome flagged DeleteNotebook, got %+v", outcome)
	}

	if err := agent.Apply(context.Background()); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if _, err := db.GetNotebook(context.Background(), "nb-1"); err == nil {
		t.Fatalf("expected the notebook to be deleted from the store")
	}
}

func TestAgentClassifiesAuthFailureAsHardFail(t *testing.T) {
	db := memstore.New()
	nb := &model.Notebook{ID: "nb-1", AccountID: "acct-1", RemotePath: "/calendars/user/personal/"}
	if err := db.UpsertNotebook(context.Background(), nb); err != nil {
		t.Fatalf("seeding notebook: %v", err)
	}

	agent, ts := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, nb, db)
	defer ts.Close()

	outcome := agent.RunUntilPostsync(context.Background())
	if outcome.State != HardFail || !outcome.AuthFailed {
		t.Fatalf("expected a HardFail outcome flagged AuthFailed, got %+v", outcome)
	}
}

func TestAgentSeriesUpsyncMirrorsWatermarkOntoPersistentExceptions(t *testing.T) {
	db := memstore.New()
	t0 := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

	nb := &model.Notebook{ID: "nb-1", AccountID: "acct-1", RemotePath: "/calendars/user/personal/", LastSync: t0}
	if err := db.UpsertNotebook(context.Background(), nb); err != nil {
		t.Fatalf("seeding notebook: %v", err)
	}

	const href = "/calendars/user/personal/series-1.ics"
	rid := time.Date(2026, 8, 8, 9, 0, 0, 0, time.UTC)

	db.SetClock(func() time.Time { return t0 })
	exc := &model.Incidence{
		UID: "series-1", RecurrenceID: &rid, Summary: "Moved occurrence",
		SyncURI: href, SyncETag: "etag-old", DetachedAndSynced: true,
	}
	if err := db.UpsertIncidence(context.Background(), "nb-1", exc); err != nil {
		t.Fatalf("seeding exception: %v", err)
	}

	db.SetClock(func() time.Time { return t1 })
	parent := &model.Incidence{
		UID: "series-1", Summary: "Standup (edited)", RRule: "FREQ=DAILY",
		SyncURI: href, SyncETag: "etag-old",
	}
	if err := db.UpsertIncidence(context.Background(), "nb-1", parent); err != nil {
		t.Fatalf("seeding parent: %v", err)
	}

	agent, ts := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "REPORT":
			w.Write([]byte(`<?xml version="1.0"?>
<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <response>
    <href>` + href + `</href>
    <propstat>
      <prop><getetag>"etag-old"</getetag></prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`))
		case "PUT":
			w.Header().Set("ETag", `"etag-new"`)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}, nb, db)
	defer ts.Close()

	outcome := agent.RunUntilPostsync(context.Background())
	if outcome.State != Postsync {
		t.Fatalf("expected Postsync, got %v (err=%v)", outcome.State, outcome.Err)
	}
	if err := agent.Apply(context.Background()); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	stored, err := db.ListIncidences(context.Background(), "nb-1")
	if err != nil {
		t.Fatalf("ListIncidences error: %v", err)
	}
	byRec := map[bool]*model.Incidence{}
	for _, x := range stored {
		byRec[x.IsException()] = x
	}
	if byRec[false] == nil || byRec[false].SyncETag != "etag-new" {
		t.Fatalf("expected the parent's watermark etag to advance to etag-new, got %+v", byRec[false])
	}
	if byRec[true] == nil || byRec[true].SyncETag != "etag-new" {
		t.Fatalf("expected the persistent exception's watermark etag to be mirrored to etag-new, got %+v", byRec[true])
	}
}

func TestAgentQuickSyncWithNoChangesProducesEmptyDelta(t *testing.T) {
	db := memstore.New()
	nb := &model.Notebook{
		ID: "nb-1", AccountID: "acct-1", RemotePath: "/calendars/user/personal/",
		LastSync: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.UpsertNotebook(context.Background(), nb); err != nil {
		t.Fatalf("seeding notebook: %v", err)
	}

	agent, ts := newTestAgent(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<multistatus xmlns="DAV:"></multistatus>`))
	}, nb, db)
	defer ts.Close()

	outcome := agent.RunUntilPostsync(context.Background())
	if outcome.State != Postsync {
		t.Fatalf("expected Postsync for an empty quick sync, got %v (err=%v)", outcome.State, outcome.Err)
	}
	if outcome.ItemFailures != 0 {
		t.Fatalf("expected no item failures, got %d", outcome.ItemFailures)
	}
}
