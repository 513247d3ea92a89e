package dav

import "context"

// deleteResource issues a plain DELETE. 404 is classified as success by
// classifyStatus (idempotent removal).
func (r *Requester) deleteResource(ctx context.Context, path string) (*Reply, error) {
	return r.Do(ctx, "DELETE", path, nil)
}
