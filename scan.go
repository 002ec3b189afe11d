package main

import (
	"fmt"

	"github.com/clousec/clousec/internal/scanner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanServices []string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one sweep and exit",
	Long:  `Run one full sweep of the selected services (all by default), reconcile the findings and print the dashboard totals.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		services, err := parseServices(scanServices)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		c, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer c.close(ctx)

		if err := c.scanner.FullScan(ctx, services...); err != nil {
			c.logger.Warn("Sweep finished with errors", zap.Error(err))
		}

		summary, err := c.view.Summary(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "open: %d resolved: %d\n", summary.Open, summary.Resolved)
		for sev, n := range summary.BySeverity {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", sev, n)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanServices, "service", nil, "service to scan: s3, ec2 or iam (repeatable)")
}

func parseServices(names []string) ([]string, error) {
	services := make([]string, 0, len(names))
	for _, name := range names {
		service, err := scanner.ParseService(name)
		if err != nil {
			return nil, err
		}
		services = append(services, service)
	}
	return services, nil
}
