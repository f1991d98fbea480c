package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/model"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <identifier> <path>",
		Short: "Resolve a package path to its on-disk blob file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resolveBase()
			if err != nil {
				return exitError(exitUserErr, err.Error())
			}
			identifier, err := model.ParsePackageIdentifier(args[0])
			if err != nil {
				return exitError(exitUserErr, err.Error())
			}
			path, err := model.ParsePath(args[1])
			if err != nil {
				return exitError(exitUserErr, err.Error())
			}

			var file string
			err = withReadTransaction(base, func(tx inventory.TransactionReadable) error {
				file, err = tx.BlobFile(identifier, path)
				return err
			})
			if err != nil {
				return exitError(exitUserErr, err.Error())
			}

			fmt.Fprintln(cmd.OutOrStdout(), file)
			return nil
		},
	}
}
