package cmd

import (
	"fmt"
	"io"

	"github.com/KaramelBytes/munidata-cli/internal/parser"
	"github.com/spf13/cobra"
)

var catalogYears []string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List what the data warehouse contains",
}

var catalogAreasCmd = &cobra.Command{
	Use:   "areas",
	Short: "List thematic areas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd, 0, "")
		if err != nil {
			return err
		}
		areas, err := store.Areas()
		if err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), areas, "(no areas)")
		return nil
	},
}

var catalogVariablesCmd = &cobra.Command{
	Use:   "variables <area>",
	Short: "List the variables of an area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd, 0, "")
		if err != nil {
			return err
		}
		vars, err := store.Variables(args[0])
		if err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), vars, "(no variables)")
		return nil
	},
}

var catalogYearsCmd = &cobra.Command{
	Use:   "years",
	Short: "List the years of the filters table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd, 0, "")
		if err != nil {
			return err
		}
		years, err := store.Years()
		if err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), years, "(no years)")
		return nil
	},
}

var catalogMunicipalitiesCmd = &cobra.Command{
	Use:   "municipalities",
	Short: "List municipality names, optionally for some years",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd, 0, "")
		if err != nil {
			return err
		}
		muns, err := store.Municipalities(splitValues(catalogYears))
		if err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), muns, "(no municipalities)")
		return nil
	},
}

var catalogSheetsCmd = &cobra.Command{
	Use:   "sheets <workbook>",
	Short: "List the sheets of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sheets, err := parser.SheetNames(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, s := range sheets {
			fmt.Fprintf(out, "%d. %s\n", i+1, s)
		}
		return nil
	},
}

func printList(w io.Writer, items []string, empty string) {
	if len(items) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "- %s\n", it)
	}
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogAreasCmd, catalogVariablesCmd, catalogYearsCmd, catalogMunicipalitiesCmd, catalogSheetsCmd)
	catalogMunicipalitiesCmd.Flags().StringArrayVar(&catalogYears, "year", nil, "restrict to year(s); repeatable or comma-separated")
}
