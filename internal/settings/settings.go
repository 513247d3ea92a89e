// Package settings implements C1: building per-session Settings from the
// external account contracts, and running the principal/home/mailto
// discovery dance that mutates it.
package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/synccal/caldav-notebook-sync/internal/account"
	"github.com/synccal/caldav-notebook-sync/internal/dav"
	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// Build assembles a model.Settings from an account's configuration and
// credentials. Created per sync session; mutated only during discovery;
// read-only during parallel calendar syncs.
func Build(cfg account.Config, creds account.Credentials) *model.Settings {
	return &model.Settings{
		ServerURL:       strings.TrimSuffix(cfg.ServerAddress, "/"),
		DAVRoot:         cfg.WebDAVPath,
		Username:        creds.Username,
		Password:        creds.Password,
		Token:           creds.Token,
		IgnoreTLSErrors: cfg.IgnoreSSLErrors,
	}
}

// Discover runs the two-phase discovery and fills in
// s.UserPrincipal, s.CalendarHome, s.UserMailto in place.
func Discover(ctx context.Context, s *model.Settings, log zerolog.Logger) error {
	client := dav.NewClient(s, log)

	path := s.DAVRoot
	result, err := client.DiscoverUserPrincipal(ctx, path)
	if err != nil {
		return fmt.Errorf("settings: discovering principal: %w", err)
	}

	s.UserPrincipal = result.UserPrincipal
	s.CalendarHome = result.CalendarHome
	s.UserMailto = result.UserMailto
	return nil
}
