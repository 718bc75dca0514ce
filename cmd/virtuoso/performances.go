package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/virtuoso/internal/presentation/tui"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/spf13/cobra"
)

var performancesCmd = &cobra.Command{
	Use:   "performances [performance-id]",
	Short: "List performances, or show the report of one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if len(args) == 1 {
			perf, ok := a.engine.Performances.Get(ctx, args[0])
			if !ok {
				return fmt.Errorf("performance %s: %w", args[0], domain.ErrNotFound)
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(perf)
			}
			comp, _ := a.engine.Compositions.Get(ctx, perf.CompositionID)
			return tui.Report(cmd.OutOrStdout(), perf, comp)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCOMPOSITION\tSTATUS\tPASSED\tTOTAL\tSTARTED")
		for _, p := range a.engine.Performances.Load(ctx) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", p.ID, p.CompositionID, p.Status, p.Summary.Passed, p.Summary.Total, p.StartTime.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List stanza templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
		for _, t := range a.engine.AllTemplates(cmd.Context()) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Name, t.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(performancesCmd, templatesCmd)
	performancesCmd.Flags().Bool("json", false, "Print the performance as JSON")
}
