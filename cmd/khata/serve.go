package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/khata/internal/api"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the categorization HTTP API",
		Long: `Serve the categorization API under /api/v1/categorization.

The engine is initialized before the listener starts, so a missing fallback
category or an unreadable catalog fails here rather than on the first request.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, store, eng, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			stats := eng.Stats()
			slog.Info("Engine ready",
				"categories", stats.Categories,
				"rules", stats.Rules,
				"history_size", stats.HistorySize)

			return api.NewServer(cfg, eng).ListenAndServe(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}
