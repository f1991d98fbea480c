package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/io7m-com/sunburst/pkg/inventory"
)

func newGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove all unreferenced blobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resolveBase()
			if err != nil {
				return exitError(exitUserErr, err.Error())
			}

			removed := 0
			err = withWriteTransaction(base, func(tx inventory.Transaction) error {
				unreferenced, err := tx.BlobsUnreferenced()
				if err != nil {
					return err
				}
				for _, blob := range unreferenced {
					if err := tx.BlobRemove(blob); err != nil {
						return err
					}
					removed++
				}
				return nil
			})
			if err != nil {
				return exitError(exitSysError, err.Error())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d blobs\n", removed)
			return nil
		},
	}
}
