// Package runtime loads peer plug-ins, validates their declared
// imports against an inventory, and resolves imported package paths to
// on-disk files.
package runtime

import (
	"sync"

	"github.com/io7m-com/sunburst/pkg/model"
)

// PeerFactory produces a peer definition. Factories are typically
// generated alongside the component that owns the peer.
type PeerFactory interface {
	OpenPeer() (model.Peer, error)
}

// Supplier lazily produces a peer factory. A supplier may fail; the
// failure is recorded as a problem rather than aborting the load.
type Supplier func() (PeerFactory, error)

// ServiceLoader discovers peer factories. The default binding is the
// process-global registry; tests substitute explicit lists.
type ServiceLoader interface {
	Load() []Supplier
}

// ServiceLoaderFunc adapts a function to the ServiceLoader interface.
type ServiceLoaderFunc func() []Supplier

func (f ServiceLoaderFunc) Load() []Supplier {
	return f()
}

// FixedLoader returns a loader serving exactly the given factories.
func FixedLoader(factories ...PeerFactory) ServiceLoader {
	suppliers := make([]Supplier, len(factories))
	for i, factory := range factories {
		factory := factory
		suppliers[i] = func() (PeerFactory, error) { return factory, nil }
	}
	return ServiceLoaderFunc(func() []Supplier { return suppliers })
}

// The process-global factory registry. Components register their peer
// factories from init functions, the way database/sql drivers register
// themselves.
var (
	registryMu sync.RWMutex
	registry   []Supplier
)

// RegisterPeerFactory adds a factory to the process-global registry
// consulted by the default service loader.
func RegisterPeerFactory(factory PeerFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, func() (PeerFactory, error) {
		return factory, nil
	})
}

// RegisteredLoader returns the loader over the process-global registry.
func RegisteredLoader() ServiceLoader {
	return ServiceLoaderFunc(func() []Supplier {
		registryMu.RLock()
		defer registryMu.RUnlock()
		suppliers := make([]Supplier, len(registry))
		copy(suppliers, registry)
		return suppliers
	})
}
