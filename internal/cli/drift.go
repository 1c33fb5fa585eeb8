package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fleet-manifests/internal/app"
	"fleet-manifests/internal/types"
)

type driftOptions struct {
	DBPath         string
	ClientID       string
	ActiveDays     int
	ProtectClients []string
}

func newDriftCommand() *cobra.Command {
	opts := driftOptions{}
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Report clients whose installed state differs from their plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDrift(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite check-in database")
	cmd.Flags().StringVar(&opts.ClientID, "client", "", "Only report this client")
	cmd.Flags().IntVar(&opts.ActiveDays, "active-days", types.DefaultActiveDays, "Days of silence before a client is skipped")
	cmd.Flags().StringSliceVar(&opts.ProtectClients, "protect-client", nil, "Clients always swept")

	_ = viper.BindPFlag("db", cmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("active_days", cmd.Flags().Lookup("active-days"))
	_ = viper.BindPFlag("protect_clients", cmd.Flags().Lookup("protect-client"))
	return cmd
}

func runDrift(ctx context.Context, cmd *cobra.Command, opts driftOptions) error {
	dbPath := resolveString(cmd, opts.DBPath, "db", "db")
	if strings.TrimSpace(dbPath) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("drift needs a check-in database (--db)")
	}
	service, closeService, err := newAppService(serviceOptions{DBPath: dbPath})
	if err != nil {
		return err
	}
	defer closeService()

	if opts.ClientID != "" {
		drift, err := service.Drift(ctx, opts.ClientID)
		if err != nil {
			return err
		}
		printDrift(opts.ClientID, drift)
		return nil
	}

	result, err := service.SweepDrift(ctx, app.DriftSweepRequest{Policy: types.ActivityPolicy{
		ActiveDays:     resolveInt(cmd, opts.ActiveDays, "active_days", "active-days"),
		ProtectClients: resolveStrings(cmd, opts.ProtectClients, "protect_clients", "protect-client"),
	}})
	if err != nil {
		return err
	}
	fmt.Printf("drifting clients: %d\n", len(result.Drift))
	for _, client := range result.Drift {
		printDrift(client.ClientID, client.Drift)
	}
	if len(result.Inactive) > 0 {
		fmt.Printf("inactive clients: %d\n", len(result.Inactive))
		for _, client := range result.Inactive {
			fmt.Printf("- %s (last check-in %s)\n", client.ClientID, client.LastCheckin.Format("2006-01-02"))
		}
	}
	return nil
}

func printDrift(clientID string, drift []string) {
	if len(drift) == 0 {
		fmt.Printf("%s: in sync\n", clientID)
		return
	}
	fmt.Printf("%s: %s\n", clientID, strings.Join(drift, ", "))
}
