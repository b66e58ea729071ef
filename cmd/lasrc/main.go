// Command lasrc embeds a Lua auto-splitter script into a shell module.
//
//	lasrc splitter.lua              # writes splitter.wasm
//	lasrc splitter.lua out.wasm --shell custom-shell.wasm
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/lasr/artifact"
	"github.com/wippyai/lasr/config"
	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/inject"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	shell    string
	export   string
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "lasrc <script.lua> [out.wasm]",
		Short: "Embed a script into a shell module",
		Long: "lasrc injects a Lua script into a WebAssembly shell module, producing a\n" +
			"self-contained artifact for lasr. Without out.wasm the script's name is\n" +
			"reused with a .wasm extension.",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			return compile(opts, args[0], out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.shell, "shell", "", "shell module to inject into (default: built-in generic shell)")
	flags.StringVar(&opts.export, "export", artifact.DefaultExport, "designated entry point export")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}

func compile(opts *options, scriptPath, outPath string) error {
	cfg := config.Default()
	cfg.LogLevel = opts.logLevel
	log, err := cfg.BuildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	inject.SetLogger(log)

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return errors.Wrap(errors.PhaseInject, errors.KindInvalidInput, err, "read script")
	}

	shell := artifact.GenericShell()
	if opts.shell != "" {
		if shell, err = os.ReadFile(opts.shell); err != nil {
			return errors.Wrap(errors.PhaseInject, errors.KindInvalidInput, err, "read shell")
		}
	}

	res, err := inject.Inject(shell, script, inject.Options{Export: opts.export})
	if err != nil {
		return err
	}

	if outPath == "" {
		outPath = outputPath(scriptPath)
	}
	if err := writeAtomic(outPath, res.Module); err != nil {
		return errors.Wrap(errors.PhaseInject, errors.KindInvalidInput, err, "write artifact")
	}

	log.Info("artifact written",
		zap.String("path", outPath),
		zap.Int("bytes", len(res.Module)),
		zap.Uint32("script_offset", res.Offset),
		zap.Uint32("script_length", res.Length),
		zap.Uint64("pages", res.NewPages))
	return nil
}

// outputPath swaps the script's extension for .wasm.
func outputPath(script string) string {
	return strings.TrimSuffix(script, filepath.Ext(script)) + ".wasm"
}

// writeAtomic writes data next to path and renames it into place, so a
// failed write never leaves a truncated artifact behind.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
