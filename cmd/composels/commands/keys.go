package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/teranos/composels/compose/keyinfo"
)

// KeysCmd lists the keys of one schema version
var KeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the keys suggested for a schema version",
	Long: `List the keys offered as completions for a compose schema version, in
the order they are suggested. Any --schema other than 2 lists the v1 keys,
as the server does for files that do not declare version "2".`,
	Args: cobra.NoArgs,
	RunE: runKeys,
}

var (
	keysSchema string
	keysJSON   bool
)

func init() {
	KeysCmd.Flags().StringVar(&keysSchema, "schema", "1", "Schema version: 1 or 2")
	KeysCmd.Flags().BoolVarP(&keysJSON, "json", "j", false, "Output as JSON")
}

func runKeys(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tables, err := loadTables(cfg)
	if err != nil {
		return err
	}
	table := tables.ForVersion(keyinfo.Normalize(keysSchema))

	if keysJSON {
		return writeJSON(cmd.OutOrStdout(), table.Entries())
	}
	return writeKeyTable(cmd.OutOrStdout(), table)
}

func writeKeyTable(w io.Writer, table *keyinfo.Table) error {
	fmt.Fprintf(w, "%s v%s: %d keys\n", pterm.LightCyan("→"), table.Version(), table.Len())

	rows := [][]string{{"Key", "Documentation"}}
	rows = append(rows, lo.Map(table.Entries(), func(e keyinfo.Entry, _ int) []string {
		return []string{e.Key, firstSentence(e.Documentation)}
	})...)
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render()
}

// firstSentence shortens documentation for table display.
func firstSentence(doc string) string {
	doc = strings.Join(strings.Fields(doc), " ")
	if i := strings.Index(doc, ". "); i >= 0 {
		doc = doc[:i+1]
	}
	const limit = 80
	if len(doc) > limit {
		doc = doc[:limit-3] + "..."
	}
	return doc
}
