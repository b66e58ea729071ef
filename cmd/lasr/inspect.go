package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/lasr/artifact"
	"github.com/wippyai/lasr/errors"
)

func newInspectCommand(g *globalFlags) *cobra.Command {
	var printScript bool
	cmd := &cobra.Command{
		Use:   "inspect <artifact.wasm>",
		Short: "Show where an artifact keeps its script",
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
			return inspect(cmd, args[0], printScript)
		},
	}
	cmd.Flags().BoolVar(&printScript, "print", false, "print the embedded script")
	return cmd
}

func inspect(cmd *cobra.Command, path string, printScript bool) error {
	bin, err := os.ReadFile(path)
	if err != nil {
		return errors.Load("read "+path, err)
	}
	info, err := artifact.Locate(bin)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	maxPages := "none"
	if info.MaxPages != nil {
		maxPages = fmt.Sprint(*info.MaxPages)
	}
	fmt.Fprintf(out, "record producer  func %d\n", info.FuncIndex)
	fmt.Fprintf(out, "script offset    %d\n", info.Offset)
	fmt.Fprintf(out, "script length    %d\n", info.Length)
	fmt.Fprintf(out, "memory pages     %d (max %s)\n", info.Pages, maxPages)
	fmt.Fprintf(out, "data segments    %d\n", len(info.Segments))
	fmt.Fprintf(out, "exports          %s\n", strings.Join(info.Exports, ", "))

	if !printScript {
		return nil
	}
	script, err := artifact.Extract(cmd.Context(), bin)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", script)
	return nil
}
