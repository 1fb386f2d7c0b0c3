package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/launchkit-dev/launchkit/internal/config"
	"github.com/launchkit-dev/launchkit/internal/routes"
)

// NewRoutesCmd creates the routes command
func NewRoutesCmd() *cobra.Command {
	var routesFile string

	cmd := &cobra.Command{
		Use:   "routes [path...]",
		Short: "Show the route classification table or classify paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable(routesFile)
			if err != nil {
				return err
			}
			return runRoutes(cmd.OutOrStdout(), table, args)
		},
	}

	cmd.Flags().StringVar(&routesFile, "file", "", "Route table YAML file (defaults to the table the server would load)")

	return cmd
}

// loadTable reads routesFile, or the server's table (ROUTES_FILE or the
// built-in default for LOGIN_PATH) when it is empty
func loadTable(routesFile string) (*routes.Table, error) {
	if routesFile != "" {
		return routes.LoadFile(routesFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.Routes, nil
}

func runRoutes(out io.Writer, table *routes.Table, paths []string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if len(paths) == 0 {
		fmt.Fprintln(w, "PREFIX\tCLASS")
		for _, rule := range table.Rules() {
			fmt.Fprintf(w, "%s\t%s\n", rule.Prefix, rule.Class)
		}
		fmt.Fprintf(w, "*\t%s\n", routes.Public)
		return w.Flush()
	}

	fmt.Fprintln(w, "PATH\tCLASS")
	for _, p := range paths {
		fmt.Fprintf(w, "%s\t%s\n", p, table.Classify(p))
	}
	return w.Flush()
}
