package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	config "github.com/strcr/nfc-meals/configs"
	"github.com/strcr/nfc-meals/internal/scansvc/db"
	"github.com/strcr/nfc-meals/internal/scansvc/service"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the settings shared by every subcommand.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "nfcctl",
		Short:         "Operate the NFC meal allowance store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := log.ParseLevel(a.v.GetString("log_level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().String("db-driver", "sqlite", "storage backend (postgres, sqlite)")
	root.PersistentFlags().String("database-url", "data/nfc-meals.db", "postgres DSN or sqlite file path")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	// flags fall back to DB_DRIVER, DATABASE_URL and LOG_LEVEL
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	for _, name := range []string{"db-driver", "database-url", "log-level"} {
		_ = a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), root.PersistentFlags().Lookup(name))
	}

	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.cardCmd())
	root.AddCommand(a.allowanceCmd())
	root.AddCommand(a.importCmd())
	root.AddCommand(a.eventsCmd())
	root.AddCommand(a.tokenCmd())

	return root
}

// open connects to the configured store.
func (a *app) open(ctx context.Context) (*db.Storage, error) {
	return db.Open(ctx, a.v.GetString("db_driver"), a.v.GetString("database_url"))
}

func (a *app) provisions(ctx context.Context) (*service.ProvisionService, func(), error) {
	storage, err := a.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return service.NewProvisionService(storage.Repos), func() { _ = storage.Close() }, nil
}

func main() {
	config.LoadEnv("nfcctl")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
