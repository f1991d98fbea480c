package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/io7m-com/sunburst/pkg/errorcodes"
	"github.com/io7m-com/sunburst/pkg/inventory"
)

// schemaVersionGet reads the on-disk schema version. The second result
// is false on a freshly-created database where the schema_version
// table does not exist yet.
func schemaVersionGet(ctx context.Context, q queryer) (int64, bool, error) {
	var name string
	err := q.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var version int64
	err = q.QueryRowContext(ctx,
		`SELECT version_number FROM schema_version`,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, false, fmt.Errorf("schema_version table is empty")
	}
	if err != nil {
		return 0, false, err
	}
	return version, true, nil
}

// queryer is the subset of *sql.Tx and *sql.DB the version reader needs.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// migrate upgrades the database to the current schema version in a
// single transaction, creating the schema_version table and its
// initial row on first-time initialization.
func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
	}
	defer tx.Rollback()

	version, initialized, err := schemaVersionGet(ctx, tx)
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
	}

	if !initialized {
		if _, err := tx.ExecContext(ctx,
			`CREATE TABLE schema_version (version_number INTEGER NOT NULL)`,
		); err != nil {
			return errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version_number) VALUES (?)`, int64(0),
		); err != nil {
			return errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
		}
		version = 0
	}

	for _, rev := range revisions {
		if rev.version <= version {
			continue
		}
		for _, statement := range rev.statements {
			if _, err := tx.ExecContext(ctx, statement); err != nil {
				return errorcodes.Wrap(
					errorcodes.ErrorDatabase,
					fmt.Sprintf("schema revision %d: %s", rev.version, err),
					err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE schema_version SET version_number = ?`, rev.version,
		); err != nil {
			return errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
		}
		version = rev.version
	}

	if err := tx.Commit(); err != nil {
		return errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
	}
	return nil
}

// checkSchemaVersion verifies, without upgrading, that the on-disk
// schema matches the version this binary expects. Used when the
// inventory is opened read-only.
func checkSchemaVersion(ctx context.Context, db *sql.DB, strs inventory.Strings) error {
	version, initialized, err := schemaVersionGet(ctx, db)
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
	}

	expected := schemaVersionCurrent()
	switch {
	case !initialized || version < expected:
		return errorcodes.New(
			errorcodes.ErrorDatabase,
			strs.Format("errorSchemaTooOld", version, expected))
	case version > expected:
		return errorcodes.New(
			errorcodes.ErrorDatabase,
			strs.Format("errorSchemaUnknown", version, expected))
	default:
		return nil
	}
}
