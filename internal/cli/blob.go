package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/model"
	"github.com/io7m-com/sunburst/pkg/sqlite"
)

func newBlobCmd() *cobra.Command {
	blob := &cobra.Command{
		Use:   "blob",
		Short: "Manage blobs",
	}
	blob.AddCommand(newBlobAddCmd())
	blob.AddCommand(newBlobListCmd())
	blob.AddCommand(newBlobUnreferencedCmd())
	return blob
}

func newBlobAddCmd() *cobra.Command {
	var contentType string

	add := &cobra.Command{
		Use:   "add <file>",
		Short: "Add a file to the blob store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlobAdd(cmd, args[0], contentType)
		},
	}
	add.Flags().StringVar(&contentType, "content-type", "application/octet-stream", "blob content type")
	return add
}

func runBlobAdd(cmd *cobra.Command, file string, contentType string) error {
	base, err := resolveBase()
	if err != nil {
		return exitError(exitUserErr, err.Error())
	}

	input, err := os.Open(file)
	if err != nil {
		return exitError(exitUserErr, fmt.Sprintf("open %s: %s", file, err))
	}
	defer input.Close()

	info, err := input.Stat()
	if err != nil {
		return exitError(exitSysError, err.Error())
	}
	hash, err := model.HashOf(model.SHA2_256, input)
	if err != nil {
		return exitError(exitSysError, err.Error())
	}
	if _, err := input.Seek(0, 0); err != nil {
		return exitError(exitSysError, err.Error())
	}

	blob := model.Blob{
		Size:        uint64(info.Size()),
		ContentType: contentType,
		Hash:        hash,
	}

	err = withWriteTransaction(base, func(tx inventory.Transaction) error {
		return tx.BlobAdd(blob, input)
	})
	if err != nil {
		return exitError(exitSysError, fmt.Sprintf("add blob: %s", err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func newBlobListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all blobs in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlobQuery(cmd, inventory.TransactionReadable.BlobList)
		},
	}
}

func newBlobUnreferencedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unreferenced",
		Short: "List blobs referenced by no package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlobQuery(cmd, inventory.TransactionReadable.BlobsUnreferenced)
		},
	}
}

func runBlobQuery(
	cmd *cobra.Command,
	query func(inventory.TransactionReadable) (map[model.Hash]model.Blob, error),
) error {
	base, err := resolveBase()
	if err != nil {
		return exitError(exitUserErr, err.Error())
	}

	var blobs map[model.Hash]model.Blob
	err = withReadTransaction(base, func(tx inventory.TransactionReadable) error {
		blobs, err = query(tx)
		return err
	})
	if err != nil {
		return exitError(exitSysError, err.Error())
	}

	sorted := make([]model.Blob, 0, len(blobs))
	for _, blob := range blobs {
		sorted = append(sorted, blob)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Hash.Compare(sorted[j].Hash) < 0
	})

	for _, blob := range sorted {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s\n",
			blob.Hash, blob.Size, blob.ContentType)
	}
	return nil
}

// withWriteTransaction opens the inventory read-write, runs f in a
// transaction, and commits if f succeeded.
func withWriteTransaction(base string, f func(inventory.Transaction) error) error {
	inv, err := sqlite.OpenReadWrite(
		nil,
		inventory.Config{BaseDirectory: base},
		newLogger(flags.verbose))
	if err != nil {
		return err
	}
	defer inv.Close()

	tx, err := inv.OpenTransaction()
	if err != nil {
		return err
	}
	defer tx.Close()

	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// withReadTransaction opens the inventory read-only and runs f in a
// readable transaction.
func withReadTransaction(base string, f func(inventory.TransactionReadable) error) error {
	inv, err := sqlite.OpenReadOnly(
		nil,
		inventory.Config{BaseDirectory: base},
		newLogger(flags.verbose))
	if err != nil {
		return err
	}
	defer inv.Close()

	tx, err := inv.OpenTransactionReadable()
	if err != nil {
		return err
	}
	defer tx.Close()

	return f(tx)
}
