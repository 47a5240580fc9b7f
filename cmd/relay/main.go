package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/oz-collabo-04/Back/infrastructure/storage"
	"github.com/oz-collabo-04/Back/internal"
	"github.com/spf13/cobra"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

var Version = "dev"

type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	root := rootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var cfgErr configError
		if stderrors.As(err, &cfgErr) {
			return exitConfig, err
		}
		return exitRuntime, err
	}
	return exitOK, nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "relay",
		Short:         "WebSocket fanout for marketplace chat and notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.AddCommand(serveCmd(), tokenCmd(), dbCmd(), connectCmd())
	return root
}

// loadConfig reads an optional .env file, then the environment.
func loadConfig() (internal.Config, error) {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return config, configError{fmt.Errorf("config error: %w", err)}
	}
	if err := config.Validate(); err != nil {
		return config, configError{err}
	}
	return config, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			log := logs.GetLoggerFromString(config.LogLevel)

			db, err := storage.Open(config.BadgerFilepath, log)
			if err != nil {
				return fmt.Errorf("database opening failed: %w", err)
			}
			defer func() {
				log.Info("Closing BadgerDB...")
				_ = db.Close()
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := internal.NewApp(log, config, db).Serve(ctx); err != nil {
				return err
			}
			log.Info("Relay stopped cleanly")
			return nil
		},
	}
}
