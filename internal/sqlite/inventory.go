package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/io7m-com/sunburst/internal/blobstore"
	"github.com/io7m-com/sunburst/internal/messages"
	"github.com/io7m-com/sunburst/pkg/errorcodes"
	"github.com/io7m-com/sunburst/pkg/inventory"
)

// databaseFileName is the catalog file under the base directory.
const databaseFileName = "sunburst.db"

// Inventory binds the SQLite catalog and the blob store for one base
// directory. The read-only variant exposes the same value through the
// smaller interface.
type Inventory struct {
	config   inventory.Config
	strings  inventory.Strings
	db       *sql.DB
	store    *blobstore.Store
	logger   *slog.Logger
	writable bool
}

var (
	_ inventory.Inventory         = (*Inventory)(nil)
	_ inventory.InventoryReadable = (*Inventory)(nil)
)

// OpenReadWrite opens the inventory read-write, creating the base
// directory and running any required schema migrations. A nil strings
// or logger selects the defaults.
func OpenReadWrite(
	strs inventory.Strings,
	config inventory.Config,
	logger *slog.Logger,
) (inventory.Inventory, error) {
	return open(strs, config, logger, true)
}

// OpenReadOnly opens the inventory read-only. Opening fails if the
// on-disk schema does not match the version this binary expects.
func OpenReadOnly(
	strs inventory.Strings,
	config inventory.Config,
	logger *slog.Logger,
) (inventory.InventoryReadable, error) {
	return open(strs, config, logger, false)
}

func open(
	strs inventory.Strings,
	config inventory.Config,
	logger *slog.Logger,
	writable bool,
) (*Inventory, error) {
	if err := config.Validate(); err != nil {
		return nil, errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}
	if strs == nil {
		strs = messages.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	if writable {
		if err := os.MkdirAll(config.BaseDirectory, 0755); err != nil {
			return nil, errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
		}
	}

	dbFile, err := filepath.Abs(filepath.Join(config.BaseDirectory, databaseFileName))
	if err != nil {
		return nil, errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	dsn := "file:" + dbFile + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !writable {
		dsn += "&mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
	}

	ctx := context.Background()
	if writable {
		err = migrate(ctx, db)
	} else {
		err = checkSchemaVersion(ctx, db, strs)
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("inventory open",
		"base", config.BaseDirectory,
		"writable", writable)

	return &Inventory{
		config:   config,
		strings:  strs,
		db:       db,
		store:    blobstore.New(filepath.Join(config.BaseDirectory, "blob"), strs, logger),
		logger:   logger,
		writable: writable,
	}, nil
}

// Configuration returns the configuration the inventory was opened with.
func (i *Inventory) Configuration() inventory.Config {
	return i.config
}

// OpenTransaction opens a read-write transaction on its own pinned
// connection.
func (i *Inventory) OpenTransaction() (inventory.Transaction, error) {
	return i.openTransaction()
}

// OpenTransactionReadable opens a read-only transaction.
func (i *Inventory) OpenTransactionReadable() (inventory.TransactionReadable, error) {
	return i.openTransaction()
}

func (i *Inventory) openTransaction() (*Transaction, error) {
	ctx := context.Background()

	conn, err := i.db.Conn(ctx)
	if err != nil {
		return nil, errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
	}

	return &Transaction{
		inventory: i,
		conn:      conn,
		tx:        tx,
		logger:    i.logger.With("transaction", uuid.NewString()),
	}, nil
}

// Close releases the connection pool. In-flight transactions are
// closed independently by their owners.
func (i *Inventory) Close() error {
	if err := i.db.Close(); err != nil {
		return errorcodes.Wrap(
			errorcodes.ErrorClosing,
			i.strings.Format("errorClosing"),
			err)
	}
	return nil
}
