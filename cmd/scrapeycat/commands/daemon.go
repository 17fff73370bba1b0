package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkforsb/scrapeycat/internal/config"
	"github.com/mkforsb/scrapeycat/internal/daemon"
	"github.com/mkforsb/scrapeycat/internal/effects"
	"github.com/mkforsb/scrapeycat/internal/engine"
	"github.com/mkforsb/scrapeycat/internal/httpfetch"
	"github.com/mkforsb/scrapeycat/internal/loader"
	"github.com/mkforsb/scrapeycat/internal/logger"
)

var daemonDebug bool

var daemonCmd = &cobra.Command{
	Use:   "daemon <config-file>",
	Short: "Load a config file and run the scheduler forever",
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("daemon: expected exactly one <config-file> argument")
	}

	logger.Init(logger.Options{Debug: daemonDebug})

	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	ld := loader.New(cfg.ScriptDirs, cfg.ScriptNames)
	ex := engine.New(
		engine.WithFetcher(httpfetch.NewColly(httpfetch.DefaultConfig())),
		engine.WithLoader(ld),
	)
	dispatch := effects.NewDispatcher(os.Stdout)

	sched, err := daemon.New(cfg, ex, dispatch, ld)
	if err != nil {
		return err
	}

	logger.Info("daemon starting", "config", args[0])

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched.Run(ctx)
	logger.Info("daemon stopped")
	return nil
}
