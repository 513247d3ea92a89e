// Package account declares the external, read-only contracts the
// orchestrator consults for one account: credentials and configuration
// accessed only through their declared contracts. Neither contract is
// owned by this module; a host application supplies
// its own implementation (e.g. backed by a system keyring and a
// configuration database).
package account

import "context"

// Credentials is what the credential store yields for one account: either
// a bearer token, or a username/password pair — never both populated
// meaningfully; the token is preferred when both are present.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// CredentialStore is the external credential singleton.
type CredentialStore interface {
	Get(ctx context.Context, accountID string) (Credentials, error)

	// MarkStale flags accountID's credentials as needing re-authentication,
	// set by the orchestrator when any notebook agent reports
	// AUTHENTICATION_FAILURE.
	MarkStale(ctx context.Context, accountID string) error
}

// Config is the read-only account configuration contract: server_address
// (trailing slash stripped), optional webdav_path,
// ignore_ssl_errors, and four parallel calendar lists.
type Config struct {
	ID string

	ServerAddress   string
	WebDAVPath      string
	IgnoreSSLErrors bool

	// Calendars, EnabledCalendars, CalendarDisplayNames, and
	// CalendarColors are parallel lists: len(EnabledCalendars) <=
	// len(Calendars); CalendarDisplayNames and CalendarColors have the
	// same length as Calendars.
	Calendars            []string
	EnabledCalendars     []string
	CalendarDisplayNames []string
	CalendarColors       []string

	// ProfileID disambiguates multiple accounts against the same CalDAV
	// service, formatted as "<service>/profile_id".
	ProfileID string
}

// ConfigStore is the external account-configuration singleton.
type ConfigStore interface {
	Get(ctx context.Context, accountID string) (Config, error)
}

// IsEnabled reports whether calendarPath is in the account's enabled list.
func (c Config) IsEnabled(calendarPath string) bool {
	for _, p := range c.EnabledCalendars {
		if p == calendarPath {
			return true
		}
	}
	return false
}

// DisplayName returns the configured display name for calendarPath, or ""
// if calendarPath isn't in Calendars.
func (c Config) DisplayName(calendarPath string) string {
	for i, p := range c.Calendars {
		if p == calendarPath && i < len(c.CalendarDisplayNames) {
			return c.CalendarDisplayNames[i]
		}
	}
	return ""
}

// Color returns the configured color for calendarPath, or "" if
// calendarPath isn't in Calendars.
func (c Config) Color(calendarPath string) string {
	for i, p := range c.Calendars {
		if p == calendarPath && i < len(c.CalendarColors) {
			return c.CalendarColors[i]
		}
	}
	return ""
}
