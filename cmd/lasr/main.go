// Command lasr runs auto-splitter artifacts built by lasrc.
//
//	lasr run splitter.wasm                 # local timer, logs to stderr
//	lasr run splitter.wasm -i              # dashboard
//	lasr run --script splitter.lua --timer livesplit
//	lasr inspect splitter.wasm --print
//	lasr journal runs.db --run 3
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/lasr/artifact"
	"github.com/wippyai/lasr/config"
	"github.com/wippyai/lasr/host"
	"github.com/wippyai/lasr/inject"
	"github.com/wippyai/lasr/process"
	"github.com/wippyai/lasr/timer"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "lasr",
		Short:        "Run Lua auto-splitters against a game process",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "config file (default: ./"+config.DefaultFile+" when present)")
	flags.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&g.logFormat, "log-format", "", "log format (auto, console, json)")

	root.AddCommand(newRunCommand(g), newInspectCommand(g), newJournalCommand(g))
	return root
}

// loadConfig layers the config file, LASR_* variables and the global flags.
// Subcommands apply their own flags on top before validating.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = g.logFormat
	}
	return cfg, nil
}

// setLoggers hands log to every package that logs.
func setLoggers(log *zap.Logger) {
	artifact.SetLogger(log)
	inject.SetLogger(log)
	process.SetLogger(log)
	timer.SetLogger(log)
	host.SetLogger(log)
}
