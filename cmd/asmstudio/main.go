// Package main is the entry point for the asmstudio debugger console.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/dshills/asmstudio/internal/app"
	"github.com/dshills/asmstudio/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("asmstudio failed")
		return 1
	}
	return 0
}

// rootFlags are the command-line overrides of the loaded configuration.
type rootFlags struct {
	configPath string
	engine     string
	address    string
	logLevel   string
	noWatch    bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "asmstudio [workspace]",
		Short:         "Assemble, run and debug assembly programs",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			logger := app.NewLogger(cmd.ErrOrStderr(), cfg.Logging.Level, true)
			application, err := app.New(cmd.Context(), app.Options{
				Config:        cfg,
				WorkspacePath: dir,
				Logger:        logger,
			})
			if err != nil {
				return err
			}
			defer application.Close()

			r := newREPL(application, cmd.InOrStdin(), cmd.OutOrStdout())
			return r.Run(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "asmstudio.toml", "path to the configuration file")
	root.PersistentFlags().StringVar(&flags.engine, "engine", "", "engine command to spawn")
	root.PersistentFlags().StringVar(&flags.address, "address", "", "host:port of a running engine")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flags.noWatch, "no-watch", false, "do not watch the workspace for file changes")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newConfigCmd(&flags))
	return root
}

// loadConfig layers the file, the environment and the flags, then
// validates the result.
func loadConfig(cmd *cobra.Command, flags rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return cfg, err
	}

	if cmd.Flags().Changed("engine") {
		cfg.Engine.Command = flags.engine
		cfg.Engine.Address = ""
	}
	if cmd.Flags().Changed("address") {
		cfg.Engine.Address = flags.address
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.noWatch {
		cfg.Workspace.Watch = false
	}

	return cfg, cfg.Validate()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "asmstudio %s (%s)\n", version, commit)
			return err
		},
	}
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := toml.NewEncoder(out).Encode(cfg); err != nil {
				return err
			}
			for _, name := range config.EnvNames() {
				if _, ok := os.LookupEnv(name); ok {
					fmt.Fprintf(out, "# %s is set\n", name)
				}
			}
			return nil
		},
	}
}
