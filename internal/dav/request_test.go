package dav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

func newTestRequester(ts *httptest.Server, s *model.Settings) *Requester {
	if s == nil {
		s = &model.Settings{}
	}
	s.ServerURL = ts.URL
	return NewRequester(s, zerolog.Nop())
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		status  int
		wantErr error
	}{
		{"put 200 success", http.MethodPut, 200, nil},
		{"delete 404 is success", http.MethodDelete, 404, nil},
		{"propfind 404 is collection gone", "PROPFIND", 404, ErrCollectionGone},
		{"report 404 is collection gone", "REPORT", 404, ErrCollectionGone},
		{"put 404 is a plain status error", http.MethodPut, 404, nil}, // checked separately below
		{"put 403 is soft failure", http.MethodPut, 403, ErrSoftFailure},
		{"delete 403 is soft failure", http.MethodDelete, 403, ErrSoftFailure},
		{"report 403 is authentication failure", "REPORT", 403, ErrAuthenticationFailed},
		{"propfind 403 is authentication failure", "PROPFIND", 403, ErrAuthenticationFailed},
		{"any 401 is authentication failure", "PROPFIND", 401, ErrAuthenticationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.method, tt.status)
			if tt.name == "put 404 is a plain status error" {
				var se *StatusError
				if err == nil {
					t.Fatalf("expected a *StatusError, got nil")
				}
				if se, ok := err.(*StatusError); !ok {
					t.Fatalf("expected *StatusError, got %T", err)
				} else if se.Status != 404 {
					t.Fatalf("expected status 404, got %d", se.Status)
				}
				_ = se
				return
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tt.wantErr != nil && err != tt.wantErr {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDoRetriesOnceOnAuthFailureForReport(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	r := newTestRequester(ts, nil)
	reply, err := r.Do(context.Background(), "REPORT", "/cal/", nil)
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if reply.HasError() {
		t.Fatalf("expected retry to succeed, got error: %v", reply.Err)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
}

func TestDoDoesNotRetryPUTOnAuthFailure(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	r := newTestRequester(ts, nil)
	reply, err := r.Do(context.Background(), http.MethodPut, "/cal/1.ics", nil)
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !reply.HasError() {
		t.Fatalf("expected an authentication error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for PUT, got %d", attempts)
	}
}

func TestApplyAuthPrefersBearerToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer abc123" {
			t.Fatalf("expected bearer auth header, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s := &model.Settings{Token: "abc123", Username: "user", Password: "pass"}
	r := newTestRequester(ts, s)
	if _, err := r.Do(context.Background(), http.MethodGet, "/", nil); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
}

func expectBasicAuth(t *testing.T, r *http.Request, wantUser, wantPass string) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	if !ok {
		t.Fatalf("expected a Basic Authorization header, got %q", r.Header.Get("Authorization"))
	}
	if user != wantUser || pass != wantPass {
		t.Fatalf("expected Basic auth %s:%s, got %s:%s", wantUser, wantPass, user, pass)
	}
}

func TestApplyAuthSendsExplicitBasicHeaderForYahooAndICloud(t *testing.T) {
	for _, host := range []string{"caldav.icloud.com", "caldav.calendar.yahoo.com"} {
		req, err := http.NewRequest(http.MethodGet, "https://"+host+"/cal/1.ics", nil)
		if err != nil {
			t.Fatalf("NewRequest error: %v", err)
		}
		s := &model.Settings{ServerURL: "https://" + host, Username: "user", Password: "pass"}
		applyAuth(req, s)
		user, pass, ok := req.BasicAuth()
		if !ok {
			t.Fatalf("expected applyAuth to set an explicit Authorization header immediately (before any wire round trip) for host %s, got %q", host, req.Header.Get("Authorization"))
		}
		if user != "user" || pass != "pass" {
			t.Fatalf("expected Basic auth user:pass for host %s, got %s:%s", host, user, pass)
		}
		if req.URL.User != nil {
			t.Fatalf("expected branch 2 to leave URL userinfo unset for host %s, got %v", host, req.URL.User)
		}
	}
}

func TestApplyAuthUsesURLUserinfoForOtherHosts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectBasicAuth(t, r, "user", "pass")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s := &model.Settings{ServerURL: ts.URL, Username: "user", Password: "pass"}
	r := newTestRequester(ts, s)
	if _, err := r.Do(context.Background(), http.MethodGet, "/", nil); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
}
