// Command dispatcher runs the job-dispatch control plane described in
// SPEC_FULL.md: an HTTP API that converts requests into container
// manifests, creates containers under a grouping label, and starts them
// subject to a concurrency quota.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kklingenberg/docker-job-dispatcher/internal/config"
	"github.com/kklingenberg/docker-job-dispatcher/internal/logging"
	"github.com/kklingenberg/docker-job-dispatcher/internal/supervisor"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatcher [filter]",
		Short: "Job-dispatching interface acting as a container scheduler",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd, args)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return supervisor.Run(ctx, cfg, logger)
		},
	}
	config.BindFlags(cmd)
	return cmd
}
