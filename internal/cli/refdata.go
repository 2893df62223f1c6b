package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"task-wizard/internal/refdata"
)

// RefDataCommand prints the reference tables.
func RefDataCommand(o *overrides) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "refdata [kind]",
		Short: "Print reference data tables",
		Long: `Print the reference tables the wizard offers in its choice lists.

Kinds: task-type, location, contact, parcel-type, organization-type.

Examples:
  task-wizard refdata
  task-wizard refdata contact --output=yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			kinds := refdata.Kinds
			if len(args) == 1 {
				kind, err := refdata.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []refdata.Kind{kind}
			}
			return printRefData(cmd.OutOrStdout(), catalog, kinds, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, yaml, json)")
	return cmd
}

func printRefData(w io.Writer, catalog *refdata.Catalog, kinds []refdata.Kind, output string) error {
	tables := make(map[string][]refdata.Option, len(kinds))
	for _, k := range kinds {
		tables[string(k)] = catalog.Options(k)
	}

	switch output {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"tables": tables}); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tables)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, k := range kinds {
			fmt.Fprintf(tw, "# %s\n", k)
			fmt.Fprintln(tw, "VALUE\tLABEL\tPHONE\tEMAIL")
			for _, opt := range tables[string(k)] {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", opt.Value, opt.Label, opt.Phone, opt.Email)
			}
			fmt.Fprintln(tw)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}
