package runtime

import (
	"fmt"

	"github.com/io7m-com/sunburst/pkg/model"
)

// Problem is a peer-loading failure recorded in the context status.
// Peer loading never fails the context as a whole; every failure
// becomes a problem and the context remains usable with the peers that
// loaded successfully.
type Problem interface {
	Message() string
}

// BrokenPeerFactory records a supplier or factory that failed.
type BrokenPeerFactory struct {
	Factory string
	Err     error
}

func (p BrokenPeerFactory) Message() string {
	return fmt.Sprintf("peer factory %s failed: %s", p.Factory, p.Err)
}

// ConflictingPeer records a peer whose package name is already taken
// by an earlier peer. The later peer is discarded.
type ConflictingPeer struct {
	PackageName string
}

func (p ConflictingPeer) Message() string {
	return fmt.Sprintf("multiple peers declare the package name %s", p.PackageName)
}

// UnsatisfiedRequirement records a peer import with no matching package
// in the inventory. The peer is rejected.
type UnsatisfiedRequirement struct {
	PeerName string
	Required model.PackageIdentifier
}

func (p UnsatisfiedRequirement) Message() string {
	return fmt.Sprintf(
		"peer %s requires package %s, which is not installed",
		p.PeerName, p.Required)
}

// InventoryProblem records an inventory error encountered during
// validation.
type InventoryProblem struct {
	Err error
}

func (p InventoryProblem) Message() string {
	return fmt.Sprintf("inventory error: %s", p.Err)
}

// Status is the outcome of the most recent load.
type Status struct {
	Problems []Problem
}

// IsFailed reports whether any problems were recorded.
func (s Status) IsFailed() bool {
	return len(s.Problems) > 0
}
