package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/io7m-com/sunburst/pkg/errorcodes"
	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/model"
)

// updatedTimeLayout is the fixed-width ISO-8601 UTC form stored in
// packages.updated. Fixed width keeps lexicographic comparison in SQL
// equal to chronological comparison.
const updatedTimeLayout = "2006-01-02T15:04:05.000000000Z"

// packageMatchWhere matches one package identifier; see
// packageMatchArgs for the argument order.
const packageMatchWhere = `name = ?
   AND version_major = ?
   AND version_minor = ?
   AND version_patch = ?
   AND version_qualifier = ?`

func packageMatchArgs(identifier model.PackageIdentifier) []any {
	version := identifier.Version
	return []any{
		identifier.Name.String(),
		int64(version.Major),
		int64(version.Minor),
		int64(version.Patch),
		version.Qualifier,
	}
}

// Transaction is one concurrency unit over the inventory: a pinned
// database connection with an explicit transaction, plus the record of
// blob files written through it. Commit, Rollback, or Close ends the
// transaction; all further operations fail.
type Transaction struct {
	inventory *Inventory
	conn      *sql.Conn
	tx        *sql.Tx
	logger    *slog.Logger

	// written records the hashes whose files this transaction placed
	// in the blob store. Rollback removes any of those files whose
	// catalog row did not survive.
	written []model.Hash

	done bool
}

var (
	_ inventory.Transaction         = (*Transaction)(nil)
	_ inventory.TransactionReadable = (*Transaction)(nil)
)

func (t *Transaction) guardOpen() error {
	if t.done {
		return errorcodes.New(
			errorcodes.ErrorDatabase,
			t.inventory.strings.Format("errorTransactionClosed"))
	}
	return nil
}

func (t *Transaction) dbError(err error) error {
	return errorcodes.Wrap(errorcodes.ErrorDatabase, err.Error(), err)
}

// finish releases the pinned connection and marks the transaction done.
func (t *Transaction) finish() error {
	t.done = true
	t.written = nil
	if err := t.conn.Close(); err != nil {
		return errorcodes.Wrap(
			errorcodes.ErrorClosing,
			t.inventory.strings.Format("errorClosing"),
			err)
	}
	return nil
}

// Commit makes the transaction's catalog writes visible atomically.
func (t *Transaction) Commit() error {
	if err := t.guardOpen(); err != nil {
		return err
	}
	if err := t.tx.Commit(); err != nil {
		return t.dbError(err)
	}
	t.logger.Debug("commit")
	return t.finish()
}

// Rollback abandons the transaction's catalog writes and removes any
// blob files this transaction placed whose rows did not survive.
func (t *Transaction) Rollback() error {
	if err := t.guardOpen(); err != nil {
		return err
	}

	written := t.written
	if err := t.tx.Rollback(); err != nil {
		t.finish()
		return t.dbError(err)
	}

	// The connection is back in auto-commit mode here; each existence
	// check sees only committed state.
	ctx := context.Background()
	var cleanupErr error
	for _, hash := range written {
		var one int
		err := t.conn.QueryRowContext(ctx,
			`SELECT 1 FROM blobs WHERE hash_algorithm = ? AND hash = ?`,
			hash.Algorithm().String(), hash.HexValue(),
		).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
			if err := t.inventory.store.Delete(hash); err != nil && cleanupErr == nil {
				cleanupErr = err
			}
		case err != nil && cleanupErr == nil:
			cleanupErr = t.dbError(err)
		}
	}

	t.logger.Debug("rollback", "orphans", len(written))
	if finishErr := t.finish(); cleanupErr == nil {
		cleanupErr = finishErr
	}
	return cleanupErr
}

// Close rolls back if the transaction is still open. Closing a
// committed or rolled-back transaction is a no-op.
func (t *Transaction) Close() error {
	if t.done {
		return nil
	}
	return t.Rollback()
}

// BlobAdd streams content into the blob store, verifying the hash, and
// records the blob in the catalog. Re-adding an existing blob is
// idempotent.
func (t *Transaction) BlobAdd(blob model.Blob, reader io.Reader) error {
	if err := t.guardOpen(); err != nil {
		return err
	}

	if err := t.inventory.store.Write(blob, reader); err != nil {
		return err
	}
	t.written = append(t.written, blob.Hash)

	_, err := t.tx.ExecContext(context.Background(),
		`INSERT INTO blobs (hash_algorithm, hash, size, content_type)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (hash_algorithm, hash) DO NOTHING`,
		blob.Hash.Algorithm().String(),
		blob.Hash.HexValue(),
		int64(blob.Size),
		blob.ContentType,
	)
	if err != nil {
		return t.dbError(err)
	}
	return nil
}

// BlobRemove deletes a blob row and, on success, the on-disk file.
// Fails with error-blob-referenced while any package entry references
// the blob.
func (t *Transaction) BlobRemove(blob model.Blob) error {
	if err := t.guardOpen(); err != nil {
		return err
	}

	hash := blob.Hash
	_, err := t.tx.ExecContext(context.Background(),
		`DELETE FROM blobs WHERE hash_algorithm = ? AND hash = ?`,
		hash.Algorithm().String(), hash.HexValue(),
	)
	if err != nil {
		// The only constraint on a blobs DELETE is the RESTRICT
		// foreign key from package_blobs; the engine may report the
		// generic or the extended code.
		var sqliteErr *sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			(sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY ||
				sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT) {
			return errorcodes.Wrap(
				errorcodes.ErrorBlobReferenced,
				t.inventory.strings.Format("errorBlobReferenced", hash),
				err)
		}
		return t.dbError(err)
	}

	return t.inventory.store.Delete(hash)
}

// BlobGet looks up a blob by hash.
func (t *Transaction) BlobGet(hash model.Hash) (model.Blob, bool, error) {
	if err := t.guardOpen(); err != nil {
		return model.Blob{}, false, err
	}

	var (
		size        int64
		contentType string
	)
	err := t.tx.QueryRowContext(context.Background(),
		`SELECT size, content_type FROM blobs WHERE hash_algorithm = ? AND hash = ?`,
		hash.Algorithm().String(), hash.HexValue(),
	).Scan(&size, &contentType)
	if err == sql.ErrNoRows {
		return model.Blob{}, false, nil
	}
	if err != nil {
		return model.Blob{}, false, t.dbError(err)
	}

	return model.Blob{
		Size:        uint64(size),
		ContentType: contentType,
		Hash:        hash,
	}, true, nil
}

func mapBlobRow(
	algorithmText string,
	hexValue string,
	size int64,
	contentType string,
) (model.Blob, error) {
	algorithm, err := model.ParseHashAlgorithm(algorithmText)
	if err != nil {
		return model.Blob{}, err
	}
	value, err := hex.DecodeString(hexValue)
	if err != nil {
		return model.Blob{}, err
	}
	hash, err := model.NewHash(algorithm, value)
	if err != nil {
		return model.Blob{}, err
	}
	return model.Blob{
		Size:        uint64(size),
		ContentType: contentType,
		Hash:        hash,
	}, nil
}

func (t *Transaction) blobQuery(query string, args ...any) (map[model.Hash]model.Blob, error) {
	if err := t.guardOpen(); err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, t.dbError(err)
	}
	defer rows.Close()

	blobs := make(map[model.Hash]model.Blob)
	for rows.Next() {
		var (
			algorithmText string
			hexValue      string
			size          int64
			contentType   string
		)
		if err := rows.Scan(&algorithmText, &hexValue, &size, &contentType); err != nil {
			return nil, t.dbError(err)
		}
		blob, err := mapBlobRow(algorithmText, hexValue, size, contentType)
		if err != nil {
			return nil, t.dbError(err)
		}
		blobs[blob.Hash] = blob
	}
	if err := rows.Err(); err != nil {
		return nil, t.dbError(err)
	}
	return blobs, nil
}

// BlobList returns all blobs in the catalog.
func (t *Transaction) BlobList() (map[model.Hash]model.Blob, error) {
	return t.blobQuery(
		`SELECT hash_algorithm, hash, size, content_type FROM blobs ORDER BY id`)
}

// BlobsUnreferenced returns the blobs referenced by no package entry.
func (t *Transaction) BlobsUnreferenced() (map[model.Hash]model.Blob, error) {
	return t.blobQuery(
		`SELECT hash_algorithm, hash, size, content_type
		   FROM blobs
		  WHERE id NOT IN (SELECT blob_id FROM package_blobs)
		  ORDER BY id`)
}

func mapIdentifierRow(
	name string,
	major, minor, patch int64,
	qualifier string,
) (model.PackageIdentifier, error) {
	packageName, err := model.ParsePackageName(name)
	if err != nil {
		return model.PackageIdentifier{}, err
	}
	version, err := model.NewVersion(
		uint32(major), uint32(minor), uint32(patch), qualifier)
	if err != nil {
		return model.PackageIdentifier{}, err
	}
	return model.PackageIdentifier{Name: packageName, Version: version}, nil
}

func (t *Transaction) packageQuery(query string, args ...any) ([]model.PackageIdentifier, error) {
	if err := t.guardOpen(); err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, t.dbError(err)
	}
	defer rows.Close()

	var identifiers []model.PackageIdentifier
	for rows.Next() {
		var (
			name                string
			major, minor, patch int64
			qualifier           string
		)
		if err := rows.Scan(&name, &major, &minor, &patch, &qualifier); err != nil {
			return nil, t.dbError(err)
		}
		identifier, err := mapIdentifierRow(name, major, minor, patch, qualifier)
		if err != nil {
			return nil, t.dbError(err)
		}
		identifiers = append(identifiers, identifier)
	}
	if err := rows.Err(); err != nil {
		return nil, t.dbError(err)
	}
	return identifiers, nil
}

// Packages returns all package identifiers in insertion order.
func (t *Transaction) Packages() ([]model.PackageIdentifier, error) {
	return t.packageQuery(
		`SELECT name, version_major, version_minor, version_patch, version_qualifier
		   FROM packages ORDER BY id`)
}

// PackagesUpdatedSince returns the identifiers of packages updated
// strictly after the given time.
func (t *Transaction) PackagesUpdatedSince(since time.Time) ([]model.PackageIdentifier, error) {
	return t.packageQuery(
		`SELECT name, version_major, version_minor, version_patch, version_qualifier
		   FROM packages
		  WHERE updated > ?
		  ORDER BY id`,
		since.UTC().Format(updatedTimeLayout))
}

// packageID resolves an identifier to its row id.
func (t *Transaction) packageID(
	ctx context.Context,
	identifier model.PackageIdentifier,
) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM packages WHERE `+packageMatchWhere,
		packageMatchArgs(identifier)...,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, t.dbError(err)
	}
	return id, true, nil
}

// PackageGet retrieves a package with its entries and metadata.
func (t *Transaction) PackageGet(
	identifier model.PackageIdentifier,
) (model.Package, bool, error) {
	if err := t.guardOpen(); err != nil {
		return model.Package{}, false, err
	}

	ctx := context.Background()
	id, ok, err := t.packageID(ctx, identifier)
	if err != nil {
		return model.Package{}, false, err
	}
	if !ok {
		return model.Package{}, false, nil
	}

	entries := make(map[model.Path]model.PackageEntry)
	rows, err := t.tx.QueryContext(ctx,
		`SELECT b.hash_algorithm, b.hash, b.size, b.content_type, pb.path
		   FROM blobs b
		   JOIN package_blobs pb ON pb.blob_id = b.id
		  WHERE pb.package_id = ?
		  ORDER BY b.id`,
		id)
	if err != nil {
		return model.Package{}, false, t.dbError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			algorithmText string
			hexValue      string
			size          int64
			contentType   string
			pathText      string
		)
		if err := rows.Scan(&algorithmText, &hexValue, &size, &contentType, &pathText); err != nil {
			return model.Package{}, false, t.dbError(err)
		}
		blob, err := mapBlobRow(algorithmText, hexValue, size, contentType)
		if err != nil {
			return model.Package{}, false, t.dbError(err)
		}
		path, err := model.ParsePath(pathText)
		if err != nil {
			return model.Package{}, false, t.dbError(err)
		}
		entries[path] = model.PackageEntry{Path: path, Blob: blob}
	}
	if err := rows.Err(); err != nil {
		return model.Package{}, false, t.dbError(err)
	}

	metadata := make(map[string]string)
	metaRows, err := t.tx.QueryContext(ctx,
		`SELECT meta_key, meta_value FROM package_meta WHERE package_id = ? ORDER BY meta_key`,
		id)
	if err != nil {
		return model.Package{}, false, t.dbError(err)
	}
	defer metaRows.Close()

	for metaRows.Next() {
		var key, value string
		if err := metaRows.Scan(&key, &value); err != nil {
			return model.Package{}, false, t.dbError(err)
		}
		metadata[key] = value
	}
	if err := metaRows.Err(); err != nil {
		return model.Package{}, false, t.dbError(err)
	}

	return model.Package{
		Identifier: identifier,
		Metadata:   metadata,
		Entries:    entries,
	}, true, nil
}

// BlobFile resolves a package path to the committed on-disk file.
func (t *Transaction) BlobFile(
	identifier model.PackageIdentifier,
	path model.Path,
) (string, error) {
	if err := t.guardOpen(); err != nil {
		return "", err
	}

	var (
		algorithmText string
		hexValue      string
	)
	args := append(packageMatchArgs(identifier), path.String())
	err := t.tx.QueryRowContext(context.Background(),
		`SELECT b.hash_algorithm, b.hash
		   FROM blobs b
		   JOIN package_blobs pb ON pb.blob_id = b.id
		   JOIN packages p ON p.id = pb.package_id
		  WHERE `+packageMatchWhere+`
		    AND pb.path = ?`,
		args...,
	).Scan(&algorithmText, &hexValue)
	if err == sql.ErrNoRows {
		return "", errorcodes.New(
			errorcodes.ErrorPathNonexistent,
			t.inventory.strings.Format("errorPathNonexistent", identifier, path))
	}
	if err != nil {
		return "", t.dbError(err)
	}

	algorithm, err := model.ParseHashAlgorithm(algorithmText)
	if err != nil {
		return "", t.dbError(err)
	}
	value, err := hex.DecodeString(hexValue)
	if err != nil {
		return "", t.dbError(err)
	}
	hash, err := model.NewHash(algorithm, value)
	if err != nil {
		return "", t.dbError(err)
	}

	if t.inventory.config.VerifyOnRead {
		if err := t.inventory.store.Verify(hash); err != nil {
			return "", err
		}
	}
	return t.inventory.store.BlobPath(hash), nil
}

// PackagePut inserts a package, or atomically replaces a snapshot.
func (t *Transaction) PackagePut(pack model.Package) error {
	if err := t.guardOpen(); err != nil {
		return err
	}

	ctx := context.Background()
	blobIDs, err := t.blobIDsForPackage(ctx, pack)
	if err != nil {
		return err
	}

	identifier := pack.Identifier
	existingID, exists, err := t.packageID(ctx, identifier)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(updatedTimeLayout)

	if exists {
		if !identifier.Version.IsSnapshot() {
			return errorcodes.New(
				errorcodes.ErrorPackageDuplicate,
				t.inventory.strings.Format("errorPackageDuplicate", identifier))
		}
		return t.packageReplaceSnapshot(ctx, existingID, pack, blobIDs, now)
	}
	return t.packageInsert(ctx, pack, blobIDs, now)
}

// blobIDsForPackage resolves every referenced hash to a blobs row id,
// failing with error-package-missing-blobs if any are absent. The
// on-disk files are not rechecked here.
func (t *Transaction) blobIDsForPackage(
	ctx context.Context,
	pack model.Package,
) (map[model.Hash]int64, error) {
	blobIDs := make(map[model.Hash]int64, len(pack.Entries))
	var missing []string

	for _, entry := range pack.Entries {
		hash := entry.Blob.Hash
		if _, ok := blobIDs[hash]; ok {
			continue
		}

		var id int64
		err := t.tx.QueryRowContext(ctx,
			`SELECT id FROM blobs WHERE hash_algorithm = ? AND hash = ?`,
			hash.Algorithm().String(), hash.HexValue(),
		).Scan(&id)
		switch {
		case err == sql.ErrNoRows:
			missing = append(missing, hash.String())
		case err != nil:
			return nil, t.dbError(err)
		default:
			blobIDs[hash] = id
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errorcodes.New(
			errorcodes.ErrorPackageMissingBlobs,
			t.inventory.strings.Format(
				"errorPackageMissingBlobs",
				pack.Identifier,
				strings.Join(missing, ", ")))
	}
	return blobIDs, nil
}

func (t *Transaction) packageInsert(
	ctx context.Context,
	pack model.Package,
	blobIDs map[model.Hash]int64,
	now string,
) error {
	version := pack.Identifier.Version
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO packages
		   (name, version_major, version_minor, version_patch, version_qualifier, updated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		pack.Identifier.Name.String(),
		int64(version.Major),
		int64(version.Minor),
		int64(version.Patch),
		version.Qualifier,
		now,
	)
	if err != nil {
		return t.dbError(err)
	}
	packageID, err := result.LastInsertId()
	if err != nil {
		return t.dbError(err)
	}

	return t.packageInsertContents(ctx, packageID, pack, blobIDs)
}

func (t *Transaction) packageReplaceSnapshot(
	ctx context.Context,
	packageID int64,
	pack model.Package,
	blobIDs map[model.Hash]int64,
	now string,
) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE packages SET updated = ? WHERE id = ?`, now, packageID,
	); err != nil {
		return t.dbError(err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM package_blobs WHERE package_id = ?`, packageID,
	); err != nil {
		return t.dbError(err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM package_meta WHERE package_id = ?`, packageID,
	); err != nil {
		return t.dbError(err)
	}
	return t.packageInsertContents(ctx, packageID, pack, blobIDs)
}

// batchRows is the number of rows per multi-row INSERT. SQLite bounds
// the number of bound variables per statement; 500 three-column rows
// stay well inside the default limit.
const batchRows = 500

func (t *Transaction) packageInsertContents(
	ctx context.Context,
	packageID int64,
	pack model.Package,
	blobIDs map[model.Hash]int64,
) error {
	entryArgs := make([]any, 0, len(pack.Entries)*3)
	for _, entry := range pack.Entries {
		entryArgs = append(entryArgs,
			packageID, blobIDs[entry.Blob.Hash], entry.Path.String())
	}
	if err := t.batchInsert(ctx,
		`INSERT INTO package_blobs (package_id, blob_id, path) VALUES `,
		3, entryArgs,
	); err != nil {
		return err
	}

	metaArgs := make([]any, 0, len(pack.Metadata)*3)
	for key, value := range pack.Metadata {
		metaArgs = append(metaArgs, packageID, key, value)
	}
	return t.batchInsert(ctx,
		`INSERT INTO package_meta (package_id, meta_key, meta_value) VALUES `,
		3, metaArgs)
}

// batchInsert executes prefix followed by as many (?,...) groups as
// args supplies, chunked to stay inside the engine's bound-variable
// limit.
func (t *Transaction) batchInsert(
	ctx context.Context,
	prefix string,
	width int,
	args []any,
) error {
	group := "(" + strings.TrimSuffix(strings.Repeat("?,", width), ",") + ")"

	for start := 0; start < len(args); start += batchRows * width {
		end := start + batchRows*width
		if end > len(args) {
			end = len(args)
		}
		chunk := args[start:end]

		groups := make([]string, len(chunk)/width)
		for i := range groups {
			groups[i] = group
		}

		if _, err := t.tx.ExecContext(ctx,
			prefix+strings.Join(groups, ","), chunk...,
		); err != nil {
			return t.dbError(err)
		}
	}
	return nil
}
