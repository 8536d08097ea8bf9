package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/munidata-cli/internal/export"
	"github.com/spf13/cobra"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest <output|manifest>",
	Short: "Show the run manifest recorded next to an output file",
	Long: `manifest reads <output>.manifest.json (or the manifest path itself) and prints
the command, parameters, inputs and outputs of the run that produced it.
Inputs that were modified or removed since the run are flagged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := export.LoadManifest(export.ManifestPath(args[0]))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "[RUN]\nID: %s\nCommand: %s\n", m.ID, m.Command)
		fmt.Fprintf(out, "Started: %s\nFinished: %s\nRows: %d\n", m.StartedAt.Format(time.RFC3339), m.FinishedAt.Format(time.RFC3339), m.Rows)
		if len(m.Parameters) > 0 {
			keys := make([]string, 0, len(m.Parameters))
			for k := range m.Parameters {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintln(out, "\n[PARAMETERS]")
			for _, k := range keys {
				fmt.Fprintf(out, "%s: %s\n", k, m.Parameters[k])
			}
		}
		changed := map[string]bool{}
		for _, p := range m.ChangedInputs() {
			changed[p] = true
		}
		fmt.Fprintln(out, "\n[INPUTS]")
		for _, in := range m.Inputs {
			mark := ""
			if changed[in.Path] {
				mark = " ⚠ changed since this run"
			}
			fmt.Fprintf(out, "- %s (%d bytes)%s\n", in.Path, in.Size, mark)
		}
		fmt.Fprintln(out, "\n[OUTPUTS]")
		for _, o := range m.Outputs {
			fmt.Fprintf(out, "- %s [%s] (%d bytes)\n", o.Path, o.Format, o.Size)
		}
		if len(m.Warnings) > 0 {
			fmt.Fprintf(out, "\n[WARNINGS]\n%s\n", strings.Join(m.Warnings, "\n"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}
