package dav

import "context"

// putCreate issues a PUT with If-None-Match: *, used for
// genuine local additions that must not silently overwrite an existing
// server resource.
func (r *Requester) putCreate(ctx context.Context, path string, data []byte) (*Reply, error) {
	return r.DoHeaders(ctx, "PUT", path, data, map[string]string{
		"Content-Type":    "text/calendar; charset=utf-8",
		"If-None-Match":   "*",
	})
}

// putUpdate issues a PUT with If-Match: <etag>, used for local
// modifications of a resource whose last-known etag we hold.
func (r *Requester) putUpdate(ctx context.Context, path string, data []byte, etag string) (*Reply, error) {
	return r.DoHeaders(ctx, "PUT", path, data, map[string]string{
		"Content-Type": "text/calendar; charset=utf-8",
		"If-Match":     `"` + etag + `"`,
	})
}

// responseETag extracts the server-assigned ETag response header, if the
// server returned one. Many servers omit it; the caller must then run a
// follow-up multiget.
func responseETag(headerValue string) string {
	return unquoteETag(headerValue)
}
