// Package commands implements the bookkeeper CLI.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/logger"
	"github.com/ctrlix/bookkeeper/internal/sheetsync"
	"github.com/ctrlix/bookkeeper/internal/store/filestore"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bookkeeper",
		Short: "Offline-first bookkeeping with spreadsheet sync",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("data", defaultDataDir(), "data directory")

	rootCmd.AddCommand(newLoginCommand())
	rootCmd.AddCommand(newLogoutCommand())
	rootCmd.AddCommand(newAddCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newApproveCommand())
	rootCmd.AddCommand(newBookCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newCategoryCommand())
	rootCmd.AddCommand(newProjectCommand())
	rootCmd.AddCommand(newEndpointCommand())

	return rootCmd
}

func defaultDataDir() string {
	if dir := os.Getenv("BOOKKEEPER_DATA"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bookkeeper"
	}
	return filepath.Join(home, ".bookkeeper")
}

// app bundles the store and sync service a command works against.
type app struct {
	store *filestore.Store
	sync  *sheetsync.Service
	log   zerolog.Logger
}

func openApp(cmd *cobra.Command) (*app, error) {
	dir, err := cmd.Flags().GetString("data")
	if err != nil {
		return nil, err
	}

	log := logger.New()
	st, err := filestore.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening data directory %s: %w", dir, err)
	}

	remote := sheetsync.NewClient(st.Endpoint)
	return &app{
		store: st,
		sync:  sheetsync.NewService(st, remote, log),
		log:   log,
	}, nil
}

// Close flushes pending detached deliveries before the process exits.
func (a *app) Close() {
	if err := a.sync.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Sync shutdown incomplete")
	}
}

// actor returns the signed-in user.
func (a *app) actor() (domain.User, error) {
	u, ok := a.store.CurrentUser()
	if !ok {
		return domain.User{}, fmt.Errorf("not signed in, run 'bookkeeper login' first")
	}
	return u, nil
}
