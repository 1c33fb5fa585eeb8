package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fleet-manifests/internal/adapters"
	"fleet-manifests/internal/app"
	"fleet-manifests/internal/server"
	"fleet-manifests/internal/types"
)

type serveOptions struct {
	Listen         string
	SeedDir        string
	DBPath         string
	Watch          bool
	ActiveDays     int
	ProtectClients []string
}

func newServeCommand() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve manifests, catalogs and check-ins over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Listen, "listen", ":8080", "Listen address")
	cmd.Flags().StringVar(&opts.SeedDir, "seed-dir", "", "Seed directory loaded at startup")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite check-in database (in memory when empty)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload the seed directory when it changes")
	cmd.Flags().IntVar(&opts.ActiveDays, "active-days", types.DefaultActiveDays, "Days of silence before a client is skipped by drift sweeps")
	cmd.Flags().StringSliceVar(&opts.ProtectClients, "protect-client", nil, "Clients always included in drift sweeps")

	_ = viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("seed_dir", cmd.Flags().Lookup("seed-dir"))
	_ = viper.BindPFlag("db", cmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("watch", cmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("active_days", cmd.Flags().Lookup("active-days"))
	_ = viper.BindPFlag("protect_clients", cmd.Flags().Lookup("protect-client"))
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	service, closeService, err := newAppService(serviceOptions{
		DBPath: resolveString(cmd, opts.DBPath, "db", "db"),
	})
	if err != nil {
		return err
	}
	defer closeService()

	seedDir := resolveString(cmd, opts.SeedDir, "seed_dir", "seed-dir")
	if seedDir != "" {
		result, err := service.Seed(ctx, app.SeedRequest{Dir: seedDir})
		if err != nil {
			return err
		}
		log.Ctx(ctx).Info().
			Int("catalogs", len(result.Catalogs)).
			Int("manifests", result.Manifests).
			Strs("missing_includes", result.MissingIncludes).
			Msg("seed loaded")
	}

	if seedDir != "" && resolveBool(cmd, opts.Watch, "watch", "watch") {
		watcher, err := adapters.NewSeedWatcher(seedDir, adapters.DefaultSeedDebounce, func(ctx context.Context) error {
			_, err := service.Seed(ctx, app.SeedRequest{Dir: seedDir})
			return err
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = watcher.Stop() }()
	}

	auth := adapters.NewTokenAuthAdapter(
		viper.GetString("admin_token"),
		viper.GetStringMapString("client_tokens"),
	)
	srv := server.New(service, auth, server.Options{
		Activity: types.ActivityPolicy{
			ActiveDays:     resolveInt(cmd, opts.ActiveDays, "active_days", "active-days"),
			ProtectClients: resolveStrings(cmd, opts.ProtectClients, "protect_clients", "protect-client"),
		},
		Logger: log.Logger,
	})
	return srv.Run(ctx, resolveString(cmd, opts.Listen, "listen", "listen"))
}
