// Command caldav-notebook-sync runs one sync cycle for a single account
// against a sqlite-backed local store, wiring together the orchestrator
// (C8) the rest of this module implements.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/synccal/caldav-notebook-sync/internal/account"
	"github.com/synccal/caldav-notebook-sync/internal/cleansync"
	"github.com/synccal/caldav-notebook-sync/internal/config"
	"github.com/synccal/caldav-notebook-sync/internal/logging"
	"github.com/synccal/caldav-notebook-sync/internal/orchestrator"
	"github.com/synccal/caldav-notebook-sync/internal/store/sqlitestore"
)

func main() {
	var accountID string
	flag.StringVar(&accountID, "account", "", "account ID to sync (required)")
	flag.Parse()

	if accountID == "" {
		fmt.Fprintln(os.Stderr, "usage: caldav-notebook-sync -account <id>")
		os.Exit(2)
	}

	session, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(session.LogLevel)
	logger = logger.With().Str("account", accountID).Logger()

	db, err := sqlitestore.Open(session.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening local store")
	}
	defer db.Close()

	credStore, cfgStore, err := loadExternalStores()
	if err != nil {
		logger.Fatal().Err(err).Msg("loading account contracts")
	}

	orch := &orchestrator.Orchestrator{
		Credentials:    credStore,
		Configs:        cfgStore,
		Notebooks:      db,
		Incidences:     db,
		CleanSync:      db,
		Locker:         cleansync.NewLocker(session.CleanSyncDir),
		Log:            logger,
		PrevMonths:     session.PrevMonths,
		NextMonths:     session.NextMonths,
		MaxConcurrency: session.MaxConcurrency,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := orch.SyncAccount(ctx, accountID)
	logger.Info().
		Int("status", int(result.Status)).
		Int("item_failures", result.ItemFailures).
		Err(result.Err).
		Msg("sync cycle complete")

	if result.Status != orchestrator.StatusSuccess {
		os.Exit(1)
	}
}

// loadExternalStores is the seam where a real deployment plugs in its
// credential and configuration backends: external, read-only contracts.
// There is no reference implementation shipped here — both
// are host-specific (keyring, config database, environment) — so this
// build reports the gap loudly rather than silently syncing nothing.
func loadExternalStores() (account.CredentialStore, account.ConfigStore, error) {
	return nil, nil, fmt.Errorf("cmd: no account.CredentialStore/ConfigStore wired; supply a deployment-specific implementation")
}
