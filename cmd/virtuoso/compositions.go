package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/aretw0/virtuoso/internal/presentation/graph"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/schema"
	"github.com/aretw0/virtuoso/pkg/store"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored compositions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tACCOUNTS\tSTANZAS\tUPDATED")
		for _, c := range a.engine.Compositions.Load(cmd.Context()) {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", c.ID, c.Name, len(c.Accounts), len(c.Stanzas), c.Updated.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <composition-id>",
	Short: "Print a stored composition as JSON or as a Mermaid sequence diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		comp, ok := a.engine.Compositions.Get(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("composition %s: %w", args[0], domain.ErrNotFound)
		}

		if mermaid, _ := cmd.Flags().GetBool("mermaid"); mermaid {
			var overlay *graph.Overlay
			if perfID, _ := cmd.Flags().GetString("performance"); perfID != "" {
				perf, ok := a.engine.Performances.Get(cmd.Context(), perfID)
				if !ok {
					return fmt.Errorf("performance %s: %w", perfID, domain.ErrNotFound)
				}
				overlay = graph.NewOverlay(perf)
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(comp, overlay))
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(comp)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <composition-id|file>",
	Short: "Check a composition for configuration errors",
	Long: `Validates a stored composition, or a JSON/YAML file when the argument is a path.
Every defect is reported, not just the first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		comp, err := resolveComposition(cmd, a, args[0])
		if err != nil {
			return err
		}
		if err := a.engine.Validate(comp); err != nil {
			for _, e := range schema.ValidationErrors(err) {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", e)
			}
			return errors.New("composition is invalid")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Composition %s is valid (%d stanzas)\n", comp.ID, len(comp.Stanzas))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <composition-id>",
	Short: "Delete a stored composition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.engine.Compositions.Delete(cmd.Context(), args[0]) {
			return fmt.Errorf("composition %s: %w", args[0], domain.ErrNotFound)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <composition-id> <file>",
	Short: "Write a stored composition to a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.engine.Compositions.ExportToFile(cmd.Context(), args[0], args[1]) {
			return fmt.Errorf("failed to export %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", args[0], args[1])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store a composition from a JSON or YAML file under a new id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		comp, ok := a.engine.Compositions.ImportFromFile(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("failed to import %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s\n", args[0], comp.ID)
		return nil
	},
}

// resolveComposition reads ref as a file when it exists, otherwise as a stored id.
func resolveComposition(cmd *cobra.Command, a *app, ref string) (*domain.Composition, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, err
		}
		comp, err := store.Decode[domain.Composition](ref, data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", ref, err)
		}
		return comp, nil
	}
	comp, ok := a.engine.Compositions.Get(cmd.Context(), ref)
	if !ok {
		return nil, fmt.Errorf("composition %s: %w", ref, domain.ErrNotFound)
	}
	return comp, nil
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, validateCmd, deleteCmd, exportCmd, importCmd)
	showCmd.Flags().Bool("mermaid", false, "Render a Mermaid sequence diagram instead of JSON")
	showCmd.Flags().String("performance", "", "Color the diagram with the results of this performance")
}
