package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medihelp/carewire/internal/aggregate"
	"github.com/medihelp/carewire/internal/store"
)

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Carewire record counts",
		Long:  "Displays row counts per collection: patients, doctors, triage sessions, and appointments. Use --watch for auto-refresh.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, watch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "carewire.yaml", "path to Carewire config file")
	cmd.Flags().BoolVar(&watch, "watch", false, "auto-refresh every 5 seconds")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string, watch bool) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	aggregator := aggregate.New(store.NewGormStore(gormDB), zap.NewNop())

	for {
		counts := aggregator.CountAll(context.Background(), aggregate.AdminStats())

		if watch {
			// Clear screen.
			fmt.Fprint(out, "\033[2J\033[H")
		}

		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(out, "Carewire status")
		for _, name := range names {
			outcome := counts[name]
			if outcome.Err != nil {
				fmt.Fprintf(out, "  %-16s error: %v\n", name, outcome.Err)
				continue
			}
			fmt.Fprintf(out, "  %-16s %d\n", name, outcome.Count)
		}

		if !watch {
			return nil
		}
		time.Sleep(5 * time.Second)
	}
}
