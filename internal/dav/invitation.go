package dav

import "github.com/synccal/caldav-notebook-sync/pkg/model"

// InvitationBoundary is the minimal surface this core exposes to an
// invitation/scheduling layer built on top of it. A CalDAV notebook sync
// core has no channel for sending scheduling messages (that's mail, not
// WebDAV), so every operation beyond the one read-only accessor declines
// with ErrNotSupported.
type InvitationBoundary struct{}

// UserPrincipalEmail returns the notebook's organizer email — the one
// property a scheduling layer needs to address outgoing invitations for
// events owned by this account.
func (InvitationBoundary) UserPrincipalEmail(nb *model.Notebook) string {
	return nb.OrganizerEmail
}

// SendInvitation declines: this core keeps notebooks in sync with the
// server, it does not originate scheduling messages.
func (InvitationBoundary) SendInvitation(*model.Notebook) error { return ErrNotSupported }

// SendUpdate declines for the same reason as SendInvitation.
func (InvitationBoundary) SendUpdate(*model.Notebook) error { return ErrNotSupported }

// SendResponse declines for the same reason as SendInvitation.
func (InvitationBoundary) SendResponse(*model.Notebook) error { return ErrNotSupported }
