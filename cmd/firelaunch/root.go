package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/fire-square/FireLaunch/internal/layout"
	"github.com/fire-square/FireLaunch/pkg/config"
	"github.com/fire-square/FireLaunch/pkg/logging"
)

type globalFlags struct {
	configPath  string
	root        string
	logLevel    string
	workers     int
	metricsAddr string
}

type cli struct {
	flags    globalFlags
	cfg      *config.Config
	logger   hclog.Logger
	flushLog func() error
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "firelaunch",
		Short:         "Install and launch game versions",
		Long:          `Resolve version manifests, download and verify their artifacts, and start the game.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("firelaunch %s\nBuilt: %s\n", version, buildTimestamp()))

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "Path to config.yaml (default "+layout.DefaultConfigFile()+")")
	pf.StringVar(&c.flags.root, "root", "", "Data root directory")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.IntVar(&c.flags.workers, "workers", 0, "Concurrent downloads")
	pf.StringVar(&c.flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(
		c.resolveCmd(),
		c.fetchCmd(),
		c.verifyCmd(),
		c.launchCmd(),
		c.listCmd(),
	)
	return rootCmd
}

// setup loads configuration and the logger; flags override the file and
// environment.
func (c *cli) setup(cmd *cobra.Command) error {
	level := c.flags.logLevel
	if level == "" {
		level = logging.GetLogLevel()
	}
	c.logger, c.flushLog = logging.NewLoggerWithFlush("firelaunch", level, cmd.ErrOrStderr())

	path, required := c.flags.configPath, true
	if path == "" {
		path, required = layout.DefaultConfigFile(), false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return usageError{err}
	}
	if c.flags.root != "" {
		cfg.Root = c.flags.root
	}
	if c.flags.workers != 0 {
		cfg.Workers = c.flags.workers
	}
	if c.flags.metricsAddr != "" {
		cfg.MetricsAddr = c.flags.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	c.logger.Debug("🔥 FireLaunch starting", "version", version, "root", cfg.Root, "workers", cfg.Workers)
	return nil
}

// flushLogs writes out anything the log writer still buffers.
func (c *cli) flushLogs() {
	if c.flushLog == nil {
		return
	}
	if err := c.flushLog(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: flushing logs:", err)
	}
}
