package model

import "fmt"

// Blob describes an immutable byte sequence addressed by its hash. The
// size and content type are advisory metadata verified by the blob
// store when the content is written.
type Blob struct {
	Size        uint64
	ContentType string
	Hash        Hash
}

func (b Blob) String() string {
	return fmt.Sprintf("[Blob %s %d %s]", b.Hash, b.Size, b.ContentType)
}

// PackageEntry associates a virtual path with a blob. Paths are unique
// within a package.
type PackageEntry struct {
	Path Path
	Blob Blob
}

// Package is a named, versioned bundle of entries with metadata.
type Package struct {
	Identifier PackageIdentifier
	Metadata   map[string]string
	Entries    map[Path]PackageEntry
}
