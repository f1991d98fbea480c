// Package messages provides the default English implementation of the
// inventory.Strings collaborator.
package messages

import "fmt"

// formats maps message keys to English format strings.
var formats = map[string]string{
	"errorClosing":             "one or more resources could not be closed",
	"errorHashMismatch":        "hash mismatch: expected %s, received %s",
	"errorSizeMismatch":        "size mismatch: expected %d bytes, received %d bytes",
	"errorBlobReferenced":      "blob %s is still referenced by one or more packages",
	"errorPackageDuplicate":    "package %s already exists and is not a snapshot",
	"errorPackageMissingBlobs": "package %s refers to blobs that are not in the catalog: %s",
	"errorPathNonexistent":     "package %s has no file at path %s",
	"errorPeerMissing":         "no peer is registered for package %s",
	"errorPeerImportMissing":   "peer %s does not import package %s (imports: %s)",
	"errorSchemaTooOld":        "database schema version %d is older than the supported version %d, and the inventory is open read-only",
	"errorSchemaUnknown":       "database schema version %d is not recognized (supported version %d)",
	"errorTransactionClosed":   "the transaction has been closed",
}

// Strings is the default message table.
type Strings struct{}

// New returns the default English strings.
func New() Strings {
	return Strings{}
}

// Format renders the message for key. Unknown keys render as the key
// followed by the raw arguments, so a missing entry is visible rather
// than silent.
func (Strings) Format(key string, args ...any) string {
	format, ok := formats[key]
	if !ok {
		return fmt.Sprintf("%s %v", key, args)
	}
	return fmt.Sprintf(format, args...)
}
