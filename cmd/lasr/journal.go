package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wippyai/lasr/timer"
)

func newJournalCommand(g *globalFlags) *cobra.Command {
	var run int64
	cmd := &cobra.Command{
		Use:   "journal <runs.db>",
		Short: "List recorded timer actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := cfg.BuildLogger()
			if err != nil {
				return err
			}
			setLoggers(log)
			return listJournal(cmd, args[0], run)
		},
	}
	cmd.Flags().Int64Var(&run, "run", 0, "only show this run (0 shows all)")
	return cmd
}

func listJournal(cmd *cobra.Command, path string, run int64) error {
	db, err := timer.OpenJournalReadOnly(path)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := timer.ReadEntries(cmd.Context(), db, run)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTIME\tACTION\tVALUE\tGAME TIME")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.Run, e.At.Format(time.DateTime), e.Action, e.Value, timer.FormatSeconds(e.GameTime))
	}
	return w.Flush()
}
