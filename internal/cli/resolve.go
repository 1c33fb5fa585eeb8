package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fleet-manifests/internal/app"
)

type resolveOptions struct {
	SeedDir    string
	ClientID   string
	Attributes []string
	Tags       []string
	Manifest   string
	OutputDir  string
	DBPath     string
	Record     bool
}

func newResolveCommand() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one client against a seed directory and write its plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SeedDir, "seed-dir", "", "Seed directory")
	cmd.Flags().StringVar(&opts.ClientID, "client", "", "Client identifier")
	cmd.Flags().StringSliceVar(&opts.Attributes, "attr", nil, "Client attribute as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "Client tag (repeatable)")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "Root manifest override")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "out", "Output directory")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "Check-in database for prior installed state")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "Record the resolution as the client's current check-in")

	_ = viper.BindPFlag("seed_dir", cmd.Flags().Lookup("seed-dir"))
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("db", cmd.Flags().Lookup("db"))

	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, opts resolveOptions) error {
	attrs, err := parseAttributes(opts.Attributes, opts.Tags)
	if err != nil {
		return err
	}
	service, closeService, err := newAppService(serviceOptions{
		DBPath: resolveString(cmd, opts.DBPath, "db", "db"),
	})
	if err != nil {
		return err
	}
	defer closeService()

	if _, err := service.Seed(ctx, app.SeedRequest{
		Dir: resolveString(cmd, opts.SeedDir, "seed_dir", "seed-dir"),
	}); err != nil {
		return err
	}
	result, err := service.Resolve(ctx, app.ResolveRequest{
		ClientID:   opts.ClientID,
		Attributes: attrs,
		Manifest:   opts.Manifest,
		Record:     opts.Record,
	})
	if err != nil {
		return err
	}
	outputDir := resolveString(cmd, opts.OutputDir, "output", "output")
	if err := service.Export(app.ExportRequest{OutputDir: outputDir, Result: result}); err != nil {
		return err
	}
	fmt.Printf("resolved %s from %s: %d installs, %d removals\n",
		result.ClientID, result.Plan.RootManifest, len(result.Installs()), len(result.Removals()))
	fmt.Printf("resolution %s (%s) written to %s\n", result.ID, result.Fingerprint, outputDir)
	return nil
}
