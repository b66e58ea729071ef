package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/lasr/artifact"
	"github.com/wippyai/lasr/config"
	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/host"
	"github.com/wippyai/lasr/process"
	"github.com/wippyai/lasr/timer"
)

type runFlags struct {
	timer            string
	livesplitAddr    string
	journal          string
	script           string
	tickRate         float64
	livesplitTimeout time.Duration
	segments         int
	interactive      bool
}

func newRunCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [artifact.wasm]",
		Short: "Attach a script to its process and drive the timer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (f.script == "") {
				return errors.InvalidInput(errors.PhaseConfig, "give either an artifact or --script")
			}
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			source := f.script
			if len(args) == 1 {
				source = args[0]
			}
			return run(cmd, cfg, source, f.script != "")
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.timer, "timer", "", "timer backend (local, livesplit)")
	flags.StringVar(&f.livesplitAddr, "livesplit-addr", "", "LiveSplit Server address")
	flags.DurationVar(&f.livesplitTimeout, "livesplit-timeout", 0, "LiveSplit Server dial and I/O timeout")
	flags.StringVar(&f.journal, "journal", "", "record timer actions in this SQLite file")
	flags.StringVar(&f.script, "script", "", "run a bare Lua script instead of an artifact")
	flags.Float64Var(&f.tickRate, "tick-rate", 0, "initial ticks per second")
	flags.IntVar(&f.segments, "segments", 0, "end the local timer's run after this many splits")
	flags.BoolVarP(&f.interactive, "interactive", "i", false, "show the dashboard")
	return cmd
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("timer") {
		cfg.Timer = f.timer
	}
	if flags.Changed("livesplit-addr") {
		cfg.LiveSplitAddr = f.livesplitAddr
	}
	if flags.Changed("livesplit-timeout") {
		cfg.LiveSplitTimeout = f.livesplitTimeout
	}
	if flags.Changed("journal") {
		cfg.Journal = f.journal
	}
	if flags.Changed("tick-rate") {
		cfg.TickRate = f.tickRate
	}
	if flags.Changed("segments") {
		cfg.Segments = f.segments
	}
	if flags.Changed("interactive") {
		cfg.Interactive = f.interactive
	}
}

func run(cmd *cobra.Command, cfg config.Config, source string, bare bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.InvalidInput(errors.PhaseConfig, "the dashboard needs a terminal")
	}

	var (
		dash *dashboard
		log  *zap.Logger
		err  error
	)
	if cfg.Interactive {
		dash = newDashboard(filepath.Base(source))
		log, err = dash.logger(cfg.LogLevel)
	} else {
		log, err = cfg.BuildLogger()
	}
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	setLoggers(log)

	script, err := loadScript(ctx, source, bare)
	if err != nil {
		return err
	}

	t, local, closeTimer, err := openTimer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeTimer()

	opts := []host.Option{
		host.WithTicker(host.NewClock(cfg.TickRate)),
		host.WithChunkName(filepath.Base(source)),
	}

	if dash == nil {
		log.Info("running", zap.String("source", source), zap.String("timer", cfg.Timer))
		err = host.New(string(script), process.NewAttacher(), t, opts...).Run(ctx)
	} else {
		dash.local = local
		opts = append(opts, host.WithObserver(dash.observer()))
		err = dash.run(ctx, host.New(string(script), process.NewAttacher(), t, opts...))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loadScript returns the bare script at source, or the script embedded in
// the artifact at source.
func loadScript(ctx context.Context, source string, bare bool) ([]byte, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, errors.Load("read "+source, err)
	}
	if bare {
		return data, nil
	}
	return artifact.Extract(ctx, data)
}

// openTimer builds the configured backend. local is set when the backend
// is the in-process timer, for the dashboard's pause control.
func openTimer(ctx context.Context, cfg config.Config) (t timer.Timer, local *timer.Local, closeFn func(), err error) {
	var closers []io.Closer
	closeFn = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	switch cfg.Timer {
	case config.TimerLiveSplit:
		ls, err := timer.DialLiveSplit(ctx, cfg.LiveSplitAddr, cfg.LiveSplitTimeout)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, ls)
		t = ls
	default:
		local = timer.NewLocal(timer.WithSegments(cfg.Segments))
		t = local
	}

	if cfg.Journal != "" {
		j, err := timer.OpenJournal(cfg.Journal, t)
		if err != nil {
			closeFn()
			return nil, nil, nil, err
		}
		closers = append(closers, j)
		t = j
	}
	return t, local, closeFn, nil
}
