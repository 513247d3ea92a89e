package dav

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// applyAuth sets the Authorization header (or URL userinfo) according to the
// compatibility order:
//
//  1. bearer token, if set;
//  2. explicit Basic header, if the host is *.yahoo.com or *.icloud.com —
//     an interoperability hack those two providers have historically
//     required, preserved verbatim;
//  3. otherwise, URL userinfo.
//
// This order must not be "simplified" to always sending an explicit header:
// the original Qt client sent branch 2 preemptively on the first request and
// left branch 3 to QNetworkAccessManager's normal challenge/response
// handling after a 401 — two different wire behaviors. Go's net/http has no
// such challenge/response auth layer: when an http.Client sends a request
// whose URL.User is non-nil and that has no Authorization header yet, it
// adds the identical preemptive "Authorization: Basic" header itself, so
// branches 2 and 3 are byte-identical on the wire here
// regardless of which field receives the credentials. The branch is kept
// for fidelity to the original compatibility order and because it's cheap
// to keep correct, not because Go can still reproduce the distinction.
func applyAuth(req *http.Request, s *model.Settings) {
	if s.HasBearerToken() {
		req.Header.Set("Authorization", "Bearer "+s.Token)
		return
	}

	if isYahooOrICloud(req.URL.Host) {
		token := base64.StdEncoding.EncodeToString([]byte(s.Username + ":" + s.Password))
		req.Header.Set("Authorization", "Basic "+token)
		return
	}

	req.URL.User = nil
	if s.Username != "" {
		req.URL.User = url.UserPassword(s.Username, s.Password)
	}
}

func isYahooOrICloud(host string) bool {
	host = strings.ToLower(host)
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return strings.HasSuffix(host, ".yahoo.com") || strings.HasSuffix(host, ".icloud.com")
}
