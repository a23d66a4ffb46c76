// Command sync runs a one-shot reconciliation pull: users, reference lists
// and the transaction snapshot, merged into the local books. Intended for
// cron or a pre-open ritual, the interactive surfaces sync on their own.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/logger"
	"github.com/ctrlix/bookkeeper/internal/sheetsync"
	"github.com/ctrlix/bookkeeper/internal/store/filestore"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	dataDir := flag.String("data", "", "data directory (required)")
	endpoint := flag.String("endpoint", "", "override the configured cloud endpoint for this run")
	flag.Parse()

	if *dataDir == "" {
		log.Fatal().Msg("Error: --data is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, err := filestore.Open(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *dataDir).Msg("Failed to open data directory")
	}

	resolveEndpoint := st.Endpoint
	if *endpoint != "" {
		resolveEndpoint = func() string { return *endpoint }
	}

	remote := sheetsync.NewClient(resolveEndpoint)
	syncSvc := sheetsync.NewService(st, remote, log)
	defer syncSvc.Close()

	if resolveEndpoint() == "" {
		log.Warn().Msg("No endpoint configured, nothing to pull")
		return
	}

	log.Info().Str("data", *dataDir).Msg("Starting reconciliation pull")

	if err := syncSvc.RefreshUsers(ctx); err != nil {
		log.Warn().Err(err).Msg("User refresh failed")
	}

	// The pull runs unscoped; a batch job reconciles the full book.
	txs, err := syncSvc.Refresh(ctx, domain.DefaultAdmin())
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	log.Info().Int("transactions", len(txs)).Msg("Reconciliation complete")
}
