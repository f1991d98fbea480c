package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/sqlite"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize an inventory",
		Long:  "Create the base directory, the catalog database, and run schema migrations.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	base, err := resolveBase()
	if err != nil {
		return exitError(exitUserErr, err.Error())
	}

	inv, err := sqlite.OpenReadWrite(
		nil,
		inventory.Config{BaseDirectory: base},
		newLogger(flags.verbose))
	if err != nil {
		return exitError(exitSysError, fmt.Sprintf("initialize inventory: %s", err))
	}
	if err := inv.Close(); err != nil {
		return exitError(exitSysError, fmt.Sprintf("close inventory: %s", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Inventory initialized at %s\n", base)
	return nil
}
