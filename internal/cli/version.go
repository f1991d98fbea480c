package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/io7m-com/sunburst"

// Version is the release version, overridden at build time.
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sunburst version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "sunburst v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
