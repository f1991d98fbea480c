// Package sqlite provides the public constructors for the SQLite-backed
// Sunburst inventory, keeping the implementation details internal.
package sqlite

import (
	"log/slog"

	"github.com/io7m-com/sunburst/internal/sqlite"
	"github.com/io7m-com/sunburst/pkg/inventory"
)

// OpenReadWrite opens an inventory read-write, creating the base
// directory and upgrading the catalog schema as required.
//
// A nil strings selects the default English messages; a nil logger
// selects slog.Default.
func OpenReadWrite(
	strings inventory.Strings,
	config inventory.Config,
	logger *slog.Logger,
) (inventory.Inventory, error) {
	return sqlite.OpenReadWrite(strings, config, logger)
}

// OpenReadOnly opens an inventory read-only. Opening fails if the
// on-disk catalog schema is not the version this binary expects.
func OpenReadOnly(
	strings inventory.Strings,
	config inventory.Config,
	logger *slog.Logger,
) (inventory.InventoryReadable, error) {
	return sqlite.OpenReadOnly(strings, config, logger)
}
