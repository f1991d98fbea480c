// Package inventory defines the public API of the Sunburst inventory:
// the configuration, the capability interfaces for inventories and
// transactions, and the message-string collaborator contract.
//
// An inventory is the on-disk combination of the relational catalog
// (sunburst.db) and the content-addressed blob store, both rooted at a
// base directory. Readers and writers interact through transactions;
// the read-only capability set is a subset of the read-write one.
package inventory

import (
	"errors"
	"io"
	"time"

	"github.com/io7m-com/sunburst/pkg/model"
)

// Config configures an inventory.
type Config struct {
	// BaseDirectory is the directory holding sunburst.db and blob/.
	BaseDirectory string

	// VerifyOnRead makes BlobFile re-hash the on-disk file before
	// returning its path. Off by default.
	VerifyOnRead bool
}

// Validate checks that the configuration is well-formed.
func (c Config) Validate() error {
	if c.BaseDirectory == "" {
		return errors.New("base directory must not be empty")
	}
	return nil
}

// Strings formats human-readable messages by key. The default
// implementation returns English text; a localized catalog may be
// substituted.
type Strings interface {
	Format(key string, args ...any) string
}

// TransactionReadable is the read capability set of a transaction.
// A transaction owns one database connection; Commit, Rollback, or
// Close ends it, and all further operations fail. Close after Commit
// or Rollback is a no-op.
type TransactionReadable interface {
	// BlobFile resolves a package path to the on-disk file holding the
	// blob content. Fails with error-path-nonexistent when the package
	// has no such path.
	BlobFile(identifier model.PackageIdentifier, path model.Path) (string, error)

	// BlobGet looks up a blob by hash.
	BlobGet(hash model.Hash) (model.Blob, bool, error)

	// BlobList returns all blobs in the catalog.
	BlobList() (map[model.Hash]model.Blob, error)

	// BlobsUnreferenced returns the blobs referenced by no package:
	// the set that is safe to remove.
	BlobsUnreferenced() (map[model.Hash]model.Blob, error)

	// Packages returns all package identifiers, in insertion order.
	Packages() ([]model.PackageIdentifier, error)

	// PackagesUpdatedSince returns the identifiers of packages updated
	// strictly after the given time.
	PackagesUpdatedSince(t time.Time) ([]model.PackageIdentifier, error)

	// PackageGet retrieves a package with its entries and metadata.
	PackageGet(identifier model.PackageIdentifier) (model.Package, bool, error)

	// Rollback abandons the transaction.
	Rollback() error

	// Close rolls back if the transaction is still open, and releases
	// its connection.
	Close() error
}

// Transaction is the full capability set of a read-write transaction.
type Transaction interface {
	TransactionReadable

	// BlobAdd streams blob content into the store, verifying the hash,
	// and records the blob in the catalog. Re-adding an existing blob
	// is idempotent.
	BlobAdd(blob model.Blob, reader io.Reader) error

	// BlobRemove deletes a blob from the catalog and the store. Fails
	// with error-blob-referenced while any package entry references it.
	BlobRemove(blob model.Blob) error

	// PackagePut inserts a package, or atomically replaces a snapshot.
	// Fails with error-package-missing-blobs if any referenced blob is
	// absent, and with error-package-duplicate on re-inserting a
	// non-snapshot identifier.
	PackagePut(pack model.Package) error

	// Commit makes the transaction's writes visible atomically.
	Commit() error
}

// InventoryReadable is the read capability set of an inventory.
type InventoryReadable interface {
	// Configuration returns the configuration the inventory was opened
	// with.
	Configuration() Config

	// OpenTransactionReadable opens a read-only transaction.
	OpenTransactionReadable() (TransactionReadable, error)

	// Close releases the inventory's resources.
	Close() error
}

// Inventory is the full capability set of a read-write inventory.
type Inventory interface {
	InventoryReadable

	// OpenTransaction opens a read-write transaction.
	OpenTransaction() (Transaction, error)
}
