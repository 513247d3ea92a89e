package dav

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/synccal/caldav-notebook-sync/internal/incidence"
	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// Client is the DAV client facade (C5): the seven typed operations C7/C8
// drive a sync cycle through. Everything below this point (Requester,
// method requests, multistatus parsing) is an internal implementation
// detail callers outside this package never see directly.
type Client struct {
	r *Requester
}

// NewClient builds a Client for one account's session settings.
func NewClient(settings *model.Settings, log zerolog.Logger) *Client {
	return &Client{r: NewRequester(settings, log)}
}

// DiscoverUserPrincipal runs the two-phase discovery:
// current-user-principal, then calendar-user-address-set and
// calendar-home-set against the discovered principal href.
func (c *Client) DiscoverUserPrincipal(ctx context.Context, path string) (model.Settings, error) {
	var out model.Settings

	reply, err := c.r.propfindPrincipal(ctx, path)
	if err != nil {
		return out, err
	}
	if reply.HasError() {
		return out, reply.Err
	}
	principal, err := ParseCurrentUserPrincipal(reply.Body)
	if err != nil {
		return out, err
	}
	out.UserPrincipal = principal

	reply, err = c.r.propfindAddressAndHome(ctx, principal)
	if err != nil {
		return out, err
	}
	if reply.HasError() {
		return out, reply.Err
	}
	mailto, home, err := ParseAddressAndHomeSet(reply.Body)
	if err != nil {
		return out, err
	}
	out.UserMailto = mailto
	out.CalendarHome = home
	return out, nil
}

// ListCalendars enumerates the calendar collections under path (normally
// the discovered calendar home), depth 1.
func (c *Client) ListCalendars(ctx context.Context, path string) ([]model.CalendarInfo, error) {
	reply, err := c.r.propfindCalendarList(ctx, path)
	if err != nil {
		return nil, err
	}
	if reply.HasError() {
		return nil, reply.Err
	}
	return ParseCalendarList(reply.Body)
}

// GetCalendarEtags lists every resource href+etag in one calendar within
// [from, end), without fetching iCalendar bodies — the cheap half of the
// delta calculation's remote side.
func (c *Client) GetCalendarEtags(ctx context.Context, path string, from, end time.Time) ([]model.Resource, error) {
	reply, err := c.r.reportCalendarQuery(ctx, path, from, end, false)
	if err != nil {
		return nil, err
	}
	if reply.HasError() {
		return nil, reply.Err
	}
	return ParseResources(reply.Body)
}

// GetCalendarResourcesInRange fetches full resources (etag + calendar-data)
// within [from, end). Each response becomes one CalendarResource record
// holding the VEVENTs of that response's calendar-data (parent +
// persistent exceptions); responses are not grouped by UID.
func (c *Client) GetCalendarResourcesInRange(ctx context.Context, path string, from, end time.Time) ([]model.CalendarResource, error) {
	reply, err := c.r.reportCalendarQuery(ctx, path, from, end, true)
	if err != nil {
		return nil, err
	}
	if reply.HasError() {
		return nil, reply.Err
	}
	resources, err := ParseResources(reply.Body)
	if err != nil {
		return nil, err
	}
	return groupResources(resources, c.r.log)
}

// GetCalendarResourcesByHref fetches full resources for a named set of
// hrefs via calendar-multiget, used to hydrate the remote side of a delta
// once the etag comparison has narrowed down which hrefs actually changed.
func (c *Client) GetCalendarResourcesByHref(ctx context.Context, path string, hrefs []string) ([]model.CalendarResource, error) {
	if len(hrefs) == 0 {
		return nil, nil
	}
	reply, err := c.r.reportCalendarMultiget(ctx, path, hrefs)
	if err != nil {
		return nil, err
	}
	if reply.HasError() {
		return nil, reply.Err
	}
	resources, err := ParseResources(reply.Body)
	if err != nil {
		return nil, err
	}
	return groupResources(resources, c.r.log)
}

// SendCalendarResource upsyncs one resource: a create (If-None-Match: *)
// when etag is empty, otherwise a conditional update (If-Match: etag). The
// returned etag is the server-assigned value from the response, or "" if
// the server omitted it (the caller must then fall back to a follow-up
// multiget).
func (c *Client) SendCalendarResource(ctx context.Context, path, data, etag string) (newETag string, err error) {
	var reply *Reply
	if etag == "" {
		reply, err = c.r.putCreate(ctx, path, []byte(data))
	} else {
		reply, err = c.r.putUpdate(ctx, path, []byte(data), etag)
	}
	if err != nil {
		return "", err
	}
	if reply.HasError() {
		return "", reply.Err
	}
	return responseETag(reply.Headers.Get("ETag")), nil
}

// DeleteResource removes one resource. A 404 is classified as success by
// classifyStatus, so a caller retrying a delete after a partial failure
// sees no error.
func (c *Client) DeleteResource(ctx context.Context, path string) error {
	reply, err := c.r.deleteResource(ctx, path)
	if err != nil {
		return err
	}
	if reply.HasError() {
		return reply.Err
	}
	return nil
}

// Discover issues a lightweight HEAD against path, used to validate server
// reachability before committing to the full discovery dance.
func (c *Client) Discover(ctx context.Context, path string) error {
	reply, err := c.r.headDiscover(ctx, path)
	if err != nil {
		return err
	}
	if reply.HasError() {
		return reply.Err
	}
	return nil
}

// groupResources decodes each Resource's iCalendar payload and groups
// same-href results into CalendarResource records. A resource whose
// payload fails to parse is skipped with a warning rather than failing the
// whole batch: a single malformed object must not abort discovery of the
// rest of the collection.
func groupResources(resources []model.Resource, log zerolog.Logger) ([]model.CalendarResource, error) {
	out := make([]model.CalendarResource, 0, len(resources))
	for _, res := range resources {
		if res.Data == "" {
			continue
		}
		incidences, ok, err := incidence.ParseCalendarObject(res.Data)
		if err != nil {
			log.Warn().Str("href", res.Href).Err(err).Msg("skipping unparseable calendar object")
			continue
		}
		if !ok {
			log.Warn().Str("href", res.Href).Msg("dropping VEVENTs with UID disagreeing with the resource's first VEVENT")
		}
		if len(incidences) == 0 {
			continue
		}
		out = append(out, model.CalendarResource{
			Href:       res.Href,
			ETag:       res.ETag,
			Incidences: incidences,
		})
	}
	return out, nil
}
