package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/model"
	"github.com/io7m-com/sunburst/pkg/pkggen"
)

func newPackageCmd() *cobra.Command {
	pkg := &cobra.Command{
		Use:   "package",
		Short: "Manage packages",
	}
	pkg.AddCommand(newPackageListCmd())
	pkg.AddCommand(newPackageShowCmd())
	pkg.AddCommand(newPackageCreateCmd())
	return pkg
}

func newPackageListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all package identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resolveBase()
			if err != nil {
				return exitError(exitUserErr, err.Error())
			}

			var identifiers []model.PackageIdentifier
			err = withReadTransaction(base, func(tx inventory.TransactionReadable) error {
				identifiers, err = tx.Packages()
				return err
			})
			if err != nil {
				return exitError(exitSysError, err.Error())
			}

			for _, identifier := range identifiers {
				fmt.Fprintln(cmd.OutOrStdout(), identifier)
			}
			return nil
		},
	}
}

func newPackageShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <identifier>",
		Short: "Show a package's entries and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resolveBase()
			if err != nil {
				return exitError(exitUserErr, err.Error())
			}
			identifier, err := model.ParsePackageIdentifier(args[0])
			if err != nil {
				return exitError(exitUserErr, err.Error())
			}

			var (
				pack  model.Package
				found bool
			)
			err = withReadTransaction(base, func(tx inventory.TransactionReadable) error {
				pack, found, err = tx.PackageGet(identifier)
				return err
			})
			if err != nil {
				return exitError(exitSysError, err.Error())
			}
			if !found {
				return exitError(exitUserErr, fmt.Sprintf("no such package: %s", identifier))
			}

			out := cmd.OutOrStdout()
			metaKeys := make([]string, 0, len(pack.Metadata))
			for key := range pack.Metadata {
				metaKeys = append(metaKeys, key)
			}
			sort.Strings(metaKeys)
			for _, key := range metaKeys {
				fmt.Fprintf(out, "meta %s %s\n", key, pack.Metadata[key])
			}

			entries := make([]model.PackageEntry, 0, len(pack.Entries))
			for _, entry := range pack.Entries {
				entries = append(entries, entry)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Path.Compare(entries[j].Path) < 0
			})
			for _, entry := range entries {
				fmt.Fprintf(out, "entry %s %d %s %s\n",
					entry.Path, entry.Blob.Size, entry.Blob.ContentType, entry.Blob.Hash)
			}
			return nil
		},
	}
}

func newPackageCreateCmd() *cobra.Command {
	var metadata []string

	create := &cobra.Command{
		Use:   "create <identifier> <directory>",
		Short: "Create a package from a directory tree",
		Long: "Hash every file under the directory, add the blobs to the inventory,\n" +
			"and record a package whose entries mirror the tree.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackageCreate(cmd, args[0], args[1], metadata)
		},
	}
	create.Flags().StringArrayVar(&metadata, "meta", nil, "metadata entry as key=value (repeatable)")
	return create
}

func runPackageCreate(
	cmd *cobra.Command,
	identifierText string,
	directory string,
	metadata []string,
) error {
	base, err := resolveBase()
	if err != nil {
		return exitError(exitUserErr, err.Error())
	}
	identifier, err := model.ParsePackageIdentifier(identifierText)
	if err != nil {
		return exitError(exitUserErr, err.Error())
	}

	meta := make(map[string]string, len(metadata))
	for _, pair := range metadata {
		key, value, err := splitMetaPair(pair)
		if err != nil {
			return exitError(exitUserErr, err.Error())
		}
		meta[key] = value
	}

	generator := pkggen.New(pkggen.Configuration{
		SourceDirectory: directory,
		Identifier:      identifier,
		Metadata:        meta,
	}, newLogger(flags.verbose))

	result, err := generator.Generate(cmd.Context())
	if err != nil {
		return exitError(exitSysError, fmt.Sprintf("generate package: %s", err))
	}

	err = withWriteTransaction(base, func(tx inventory.Transaction) error {
		return pkggen.Install(tx, result)
	})
	if err != nil {
		return exitError(exitSysError, fmt.Sprintf("install package: %s", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d entries)\n", identifier, len(result.Package.Entries))
	return nil
}

func splitMetaPair(pair string) (string, string, error) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			if i == 0 {
				break
			}
			return pair[:i], pair[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("metadata %q must be of the form key=value", pair)
}
