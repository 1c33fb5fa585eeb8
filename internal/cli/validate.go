package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fleet-manifests/internal/app"
)

type validateOptions struct {
	SeedDir string
}

func newValidateCommand() *cobra.Command {
	opts := validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a seed directory without serving it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.SeedDir, "seed-dir", "", "Seed directory")
	_ = viper.BindPFlag("seed_dir", cmd.Flags().Lookup("seed-dir"))
	return cmd
}

func runValidate(ctx context.Context, cmd *cobra.Command, opts validateOptions) error {
	service, closeService, err := newAppService(serviceOptions{})
	if err != nil {
		return err
	}
	defer closeService()

	result, err := service.Validate(ctx, app.ValidateRequest{
		SeedDir: resolveString(cmd, opts.SeedDir, "seed_dir", "seed-dir"),
	})
	if err != nil {
		return err
	}
	printSeedSummary(result)
	return nil
}

func printSeedSummary(result app.SeedResult) {
	for _, catalog := range result.Catalogs {
		fmt.Printf("catalog %s v%d: %d entries (%d active)\n", catalog.Name, catalog.Version, catalog.Entries, catalog.Active)
	}
	fmt.Printf("manifests: %d, aliases: %d, modifications: %d\n", result.Manifests, result.Aliases, result.Modifications)
	if len(result.MissingIncludes) > 0 {
		fmt.Printf("missing includes: %s\n", strings.Join(result.MissingIncludes, ", "))
	}
}
