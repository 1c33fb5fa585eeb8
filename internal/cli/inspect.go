package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fleet-manifests/internal/app"
	"fleet-manifests/internal/types"
)

type inspectOptions struct {
	OutputDir string
}

func newInspectCommand() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect a plan written by resolve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.OutputDir, "output", "out", "Output directory")
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))
	return cmd
}

func runInspect(cmd *cobra.Command, opts inspectOptions) error {
	service := app.NewService()
	result, err := service.Inspect(app.InspectRequest{
		OutputDir: resolveString(cmd, opts.OutputDir, "output", "output"),
	})
	if err != nil {
		return err
	}

	report := result.Report
	fmt.Printf("resolution %s for %s (root %s, resolved %s)\n",
		report.ResolutionID, report.ClientID, report.RootManifest, report.ResolvedAt)
	fmt.Printf("fingerprint: %s\n", report.Fingerprint)
	printLockEntries("installs", result.Installs)
	printLockEntries("removals", result.Removals)
	return nil
}

func printLockEntries(label string, entries []types.PlanLockEntry) {
	fmt.Printf("%s: %d\n", label, len(entries))
	for _, entry := range entries {
		if entry.Version != "" {
			fmt.Printf("- %s %s\n", entry.Package, entry.Version)
			continue
		}
		fmt.Printf("- %s\n", entry.Package)
	}
}
