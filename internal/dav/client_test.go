package dav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

func newTestClient(ts *httptest.Server) *Client {
	return NewClient(&model.Settings{ServerURL: ts.URL}, zerolog.Nop())
}

func TestDiscoverUserPrincipalTwoPhase(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<?xml version="1.0"?>
<multistatus xmlns="DAV:">
  <response>
    <href>/principals/user/</href>
    <propstat>
      <prop><current-user-principal><href>/principals/user/</href></current-user-principal></prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`))
		case "/principals/user/":
			w.Write([]byte(`<?xml version="1.0"?>
<multistatus xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <response>
    <href>/principals/user/</href>
    <propstat>
      <prop>
        <C:calendar-home-set><href>/calendars/user/</href></C:calendar-home-set>
        <C:calendar-user-address-set><href>mailto:user@example.com</href></C:calendar-user-address-set>
      </prop>
      <status>HTTP/1.1 200 OK</status>
    </propstat>
  </response>
</multistatus>`))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	c := newTestClient(ts)
	settings, err := c.DiscoverUserPrincipal(context.Background(), "")
	if err != nil {
		t.Fatalf("DiscoverUserPrincipal error: %v", err)
	}
	if settings.UserPrincipal != "/principals/user/" {
		t.Fatalf("unexpected principal: %q", settings.UserPrincipal)
	}
	if settings.CalendarHome != "/calendars/user/" {
		t.Fatalf("unexpected home: %q", settings.CalendarHome)
	}
	if settings.UserMailto != "user@example.com" {
		t.Fatalf("unexpected mailto: %q", settings.UserMailto)
	}
}

func TestSendCalendarResourceCreateUsesIfNoneMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("If-None-Match"); got != "*" {
			t.Fatalf("expected If-None-Match: *, got %q", got)
		}
		if r.Header.Get("If-Match") != "" {
			t.Fatalf("did not expect If-Match on create")
		}
		w.Header().Set("ETag", `"new-etag"`)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	etag, err := c.SendCalendarResource(context.Background(), "/calendars/user/personal/1.ics", "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", "")
	if err != nil {
		t.Fatalf("SendCalendarResource error: %v", err)
	}
	if etag != "new-etag" {
		t.Fatalf("expected unquoted etag, got %q", etag)
	}
}

func TestSendCalendarResourceUpdateUsesIfMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("If-Match"); got != `"old-etag"` {
			t.Fatalf("expected If-Match: \"old-etag\", got %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if _, err := c.SendCalendarResource(context.Background(), "/calendars/user/personal/1.ics", "data", "old-etag"); err != nil {
		t.Fatalf("SendCalendarResource error: %v", err)
	}
}

func TestDeleteResourceTreats404AsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if err := c.DeleteResource(context.Background(), "/calendars/user/personal/1.ics"); err != nil {
		t.Fatalf("expected 404 on DELETE to be treated as success, got %v", err)
	}
}

func TestGetCalendarEtagsSurfacesCollectionGone(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.GetCalendarEtags(context.Background(), "/calendars/user/gone/", time.Time{}, time.Time{})
	if err != ErrCollectionGone {
		t.Fatalf("expected ErrCollectionGone, got %v", err)
	}
}
