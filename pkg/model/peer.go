package model

import (
	"fmt"
	"sort"

	"github.com/io7m-com/sunburst/pkg/errorcodes"
)

// Peer is a software component that declares imports over package names
// and versions. The package name identifies the peer's own code
// package; it is not required to name a package in any inventory.
type Peer struct {
	packageName string
	imports     map[PackageName]Version
}

// PackageName returns the peer's code package name.
func (p Peer) PackageName() string {
	return p.packageName
}

// Imports returns the declared imports. The returned map is a copy.
func (p Peer) Imports() map[PackageName]Version {
	imports := make(map[PackageName]Version, len(p.imports))
	for name, version := range p.imports {
		imports[name] = version
	}
	return imports
}

// Import returns the version the peer imports for the given name.
func (p Peer) Import(name PackageName) (Version, bool) {
	version, ok := p.imports[name]
	return version, ok
}

// ImportSet returns the imports as a sorted list of identifiers.
func (p Peer) ImportSet() []PackageIdentifier {
	identifiers := make([]PackageIdentifier, 0, len(p.imports))
	for name, version := range p.imports {
		identifiers = append(identifiers, PackageIdentifier{Name: name, Version: version})
	}
	sort.Slice(identifiers, func(i, j int) bool {
		return identifiers[i].Compare(identifiers[j]) < 0
	})
	return identifiers
}

func (p Peer) String() string {
	return fmt.Sprintf("[Peer %s]", p.packageName)
}

// PeerBuilder accumulates imports for a peer. At most one version may
// be declared per imported package name.
type PeerBuilder struct {
	packageName string
	imports     map[PackageName]Version
}

// NewPeerBuilder creates a builder for a peer with the given code
// package name.
func NewPeerBuilder(packageName string) *PeerBuilder {
	return &PeerBuilder{
		packageName: packageName,
		imports:     make(map[PackageName]Version),
	}
}

// AddImport declares an import. Declaring two different versions of the
// same package fails with error-peer-misconfigured; redeclaring the
// same version is a no-op.
func (b *PeerBuilder) AddImport(name PackageName, version Version) error {
	if existing, ok := b.imports[name]; ok {
		if existing == version {
			return nil
		}
		return errorcodes.New(
			errorcodes.ErrorPeerMisconfigured,
			fmt.Sprintf(
				"peer %s imports package %s with conflicting versions %s and %s",
				b.packageName, name, existing, version))
	}
	b.imports[name] = version
	return nil
}

// AddImportIdentifier declares an import given as an identifier.
func (b *PeerBuilder) AddImportIdentifier(identifier PackageIdentifier) error {
	return b.AddImport(identifier.Name, identifier.Version)
}

// Build returns the immutable peer.
func (b *PeerBuilder) Build() Peer {
	imports := make(map[PackageName]Version, len(b.imports))
	for name, version := range b.imports {
		imports[name] = version
	}
	return Peer{packageName: b.packageName, imports: imports}
}
