package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reportal-io/reportal/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the reportal API server. The server exposes natural-language query
execution, the table catalog, report CRUD, chart evaluation, and stateful
report-builder sessions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig(cmd.Context())
			if err != nil {
				return err
			}
			logger := LoggerFrom(cmd.Context())

			svcs, err := buildServices(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer svcs.Close()

			secret := cfg.Server.SessionSecret
			if secret == "" {
				// Ephemeral secret; sessions do not survive a restart.
				buf := make([]byte, 32)
				if _, err := rand.Read(buf); err != nil {
					return err
				}
				secret = hex.EncodeToString(buf)
				logger.Warn("server.session_secret not set, using an ephemeral secret")
			}

			srv := server.NewServer(server.Config{
				Query:         svcs.Query,
				Catalog:       svcs.Catalog,
				Store:         svcs.Store,
				Host:          cfg.Server.Host,
				Port:          cfg.Server.Port,
				SessionSecret: secret,
				Logger:        logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := srv.Serve(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
	cmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
	return cmd
}
