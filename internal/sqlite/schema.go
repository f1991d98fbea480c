// Package sqlite implements the Sunburst inventory over a SQLite
// catalog and the content-addressed blob store. The catalog holds
// package and blob metadata; blob content lives in the store. A
// transaction joins the two: catalog writes run on a single pinned
// connection with an explicit transaction, and blob file placement is
// reconciled with the catalog on rollback.
package sqlite

// Schema DDL, one revision per upgrade step. The schema_version table
// itself is managed by the migration runner.
const (
	createBlobs = `CREATE TABLE blobs (
    id             INTEGER PRIMARY KEY,
    hash_algorithm TEXT NOT NULL,
    hash           TEXT NOT NULL,
    size           INTEGER NOT NULL,
    content_type   TEXT NOT NULL,
    UNIQUE (hash_algorithm, hash)
);`

	createPackages = `CREATE TABLE packages (
    id                INTEGER PRIMARY KEY,
    name              TEXT NOT NULL,
    version_major     INTEGER NOT NULL,
    version_minor     INTEGER NOT NULL,
    version_patch     INTEGER NOT NULL,
    version_qualifier TEXT NOT NULL,
    updated           TEXT NOT NULL,
    UNIQUE (name, version_major, version_minor, version_patch, version_qualifier)
);`

	createPackageBlobs = `CREATE TABLE package_blobs (
    package_id INTEGER NOT NULL REFERENCES packages (id) ON DELETE CASCADE,
    blob_id    INTEGER NOT NULL REFERENCES blobs (id) ON DELETE RESTRICT,
    path       TEXT NOT NULL,
    UNIQUE (package_id, path)
);`

	createPackageMeta = `CREATE TABLE package_meta (
    package_id INTEGER NOT NULL REFERENCES packages (id) ON DELETE CASCADE,
    meta_key   TEXT NOT NULL,
    meta_value TEXT NOT NULL,
    UNIQUE (package_id, meta_key)
);`

	idxPackageBlobsBlob = `CREATE INDEX idx_package_blobs_blob ON package_blobs (blob_id);`
	idxPackagesUpdated  = `CREATE INDEX idx_packages_updated ON packages (updated);`
)

// revision is one schema upgrade step.
type revision struct {
	version    int64
	statements []string
}

// revisions lists all schema revisions in ascending version order.
// Opening read-write applies any revision newer than the on-disk
// version; opening read-only requires the on-disk version to match the
// latest exactly.
var revisions = []revision{
	{
		version: 1,
		statements: []string{
			createBlobs,
			createPackages,
			createPackageBlobs,
			createPackageMeta,
			idxPackageBlobsBlob,
			idxPackagesUpdated,
		},
	},
}

// schemaVersionCurrent is the version this binary expects.
func schemaVersionCurrent() int64 {
	return revisions[len(revisions)-1].version
}
