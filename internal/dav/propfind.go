package dav

import "context"

const (
	depthZero = "0"
	depthOne  = "1"
)

const xmlHeader = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

const propfindPrincipalBody = xmlHeader + `<propfind xmlns="DAV:">
  <prop>
    <current-user-principal/>
  </prop>
</propfind>`

const propfindAddressAndHomeBody = xmlHeader + `<propfind xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <prop>
    <C:calendar-user-address-set/>
    <C:calendar-home-set/>
  </prop>
</propfind>`

const propfindCalendarListBody = xmlHeader + `<propfind xmlns="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:A="http://apple.com/ns/ical/">
  <prop>
    <resourcetype/>
    <current-user-principal/>
    <current-user-privilege-set/>
    <displayname/>
    <A:calendar-color/>
    <C:supported-calendar-component-set/>
  </prop>
</propfind>`

func propfindHeaders(depth string) map[string]string {
	return map[string]string{
		"Depth":        depth,
		"Prefer":       "return-minimal",
		"Content-Type": "application/xml; charset=utf-8",
	}
}

// propfindPrincipal issues the phase-1 PROPFIND (current-user-principal) of
// depth 0, against path (or "/" when path is empty).
func (r *Requester) propfindPrincipal(ctx context.Context, path string) (*Reply, error) {
	if path == "" {
		path = "/"
	}
	return r.DoHeaders(ctx, "PROPFIND", path, []byte(propfindPrincipalBody), propfindHeaders(depthZero))
}

// propfindAddressAndHome issues the phase-2 PROPFIND (address-set +
// home-set) against the discovered principal href, depth 0.
func (r *Requester) propfindAddressAndHome(ctx context.Context, principalHref string) (*Reply, error) {
	return r.DoHeaders(ctx, "PROPFIND", principalHref, []byte(propfindAddressAndHomeBody), propfindHeaders(depthZero))
}

// propfindCalendarList issues the calendar-enumeration PROPFIND (template
// 3) against the calendar home, depth 1.
func (r *Requester) propfindCalendarList(ctx context.Context, homePath string) (*Reply, error) {
	return r.DoHeaders(ctx, "PROPFIND", homePath, []byte(propfindCalendarListBody), propfindHeaders(depthOne))
}
