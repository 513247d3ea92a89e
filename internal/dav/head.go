package dav

import "context"

// headDiscover issues a HEAD request used for lightweight service
// discovery: confirming a server is reachable and CalDAV-
// capable before committing to the heavier PROPFIND dance.
func (r *Requester) headDiscover(ctx context.Context, path string) (*Reply, error) {
	return r.Do(ctx, "HEAD", path, nil)
}
