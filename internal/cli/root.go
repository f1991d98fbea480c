// Package cli implements the sunburst command-line interface: an
// operator front-end over the inventory core.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes.
const (
	exitSuccess  = 0
	exitUserErr  = 1
	exitSysError = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	base    string
	verbose bool
}

var flags rootFlags

// NewRootCmd creates the top-level "sunburst" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sunburst",
		Short: "Manage a Sunburst asset inventory",
		Long: "Sunburst stores binary blobs in a content-addressed inventory and\n" +
			"associates them with named, versioned packages.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.base, "base", "", "inventory base directory (default: $SUNBURST_BASE)")
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "enable debug logging")

	viper.SetEnvPrefix("SUNBURST")
	viper.AutomaticEnv()

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newBlobCmd())
	root.AddCommand(newPackageCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newGCCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitUserErr)
	}
}

// resolveBase returns the base directory from flag or environment.
func resolveBase() (string, error) {
	if flags.base != "" {
		return flags.base, nil
	}
	if base := viper.GetString("base"); base != "" {
		return base, nil
	}
	return "", fmt.Errorf("no base directory: pass --base or set SUNBURST_BASE")
}

// exitError prints the error to stderr and exits with the given code.
func exitError(code int, msg string) error {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
	return nil // unreachable
}
