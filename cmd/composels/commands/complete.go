package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/teranos/composels/compose"
	"github.com/teranos/composels/errors"
)

// CompleteCmd runs one completion request outside an editor
var CompleteCmd = &cobra.Command{
	Use:   "complete <file>",
	Short: "Show the suggestions for one cursor position",
	Long: `Route a single completion request the way the language server would and
print the rule that matched and the suggestions it produced.

Line and character are zero-based; character counts UTF-16 code units.`,
	Example: `  composels complete docker-compose.yml --line 3 --character 4
  composels complete docker-compose.yml --line 5 --character 14 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

var (
	completeLine      int
	completeCharacter int
	completeJSON      bool
)

func init() {
	CompleteCmd.Flags().IntVar(&completeLine, "line", 0, "Zero-based line of the cursor")
	CompleteCmd.Flags().IntVar(&completeCharacter, "character", 0, "Zero-based column of the cursor in UTF-16 units")
	CompleteCmd.Flags().BoolVarP(&completeJSON, "json", "j", false, "Output as JSON")
}

// completionReport is the --json output of complete
type completionReport struct {
	File          string                   `json:"file"`
	Position      compose.Position         `json:"position"`
	Rule          string                   `json:"rule"`
	SchemaVersion string                   `json:"schema_version"`
	Items         []compose.CompletionItem `json:"items"`
}

func runComplete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	images := &imageSource{}
	defer images.Close()
	router, err := buildRouter(cfg, images)
	if err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}

	doc := compose.NewDocument(string(data))
	pos := compose.Position{Line: completeLine, Character: completeCharacter}
	decision := router.Route(doc, pos)

	items, err := router.ProvideCompletions(cmd.Context(), doc, pos)
	if err != nil {
		return errors.Wrap(err, "completion failed")
	}

	report := completionReport{
		File:          path,
		Position:      pos,
		Rule:          decision.Rule.String(),
		SchemaVersion: string(decision.Version),
		Items:         items,
	}
	if completeJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	return writeCompletionTable(cmd.OutOrStdout(), report)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeCompletionTable(w io.Writer, report completionReport) error {
	fmt.Fprintf(w, "%s %s:%d:%d  rule=%s  schema=v%s  items=%d\n",
		pterm.LightCyan("→"),
		report.File, report.Position.Line, report.Position.Character,
		report.Rule, report.SchemaVersion, len(report.Items))

	if len(report.Items) == 0 {
		fmt.Fprintln(w, pterm.Gray("no suggestions"))
		return nil
	}

	rows := [][]string{{"Label", "Kind", "Insert", "Detail"}}
	rows = append(rows, lo.Map(report.Items, func(item compose.CompletionItem, _ int) []string {
		return []string{item.Label, string(item.Kind), fmt.Sprintf("%q", item.InsertText), item.Detail}
	})...)
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render()
}
