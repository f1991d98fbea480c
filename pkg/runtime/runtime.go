package runtime

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/io7m-com/sunburst/pkg/errorcodes"
	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/model"
	"github.com/io7m-com/sunburst/pkg/sqlite"
)

// Context is a loaded set of peers with validated imports, exposing
// file lookup over the inventory. Reload, Status, FindFile, and
// OpenChannel are idempotent; none of them mutates hidden state beyond
// the atomic swap performed by Reload.
type Context struct {
	inventory inventory.InventoryReadable
	loader    ServiceLoader
	logger    *slog.Logger
	ownsInv   bool

	mu       sync.RWMutex
	peers    map[string]model.Peer
	problems []Problem
}

// Open opens a read-only inventory for the configuration and loads
// peers from the process-global registry.
func Open(config inventory.Config, logger *slog.Logger) (*Context, error) {
	return OpenWithLoader(config, RegisteredLoader(), logger)
}

// OpenWithLoader opens a read-only inventory and loads peers from the
// given loader.
func OpenWithLoader(
	config inventory.Config,
	loader ServiceLoader,
	logger *slog.Logger,
) (*Context, error) {
	inv, err := sqlite.OpenReadOnly(nil, config, logger)
	if err != nil {
		return nil, err
	}
	context := OpenUsingInventory(inv, loader, logger)
	context.ownsInv = true
	return context, nil
}

// OpenUsingInventory loads peers against an already-open inventory.
// The caller retains ownership of the inventory.
func OpenUsingInventory(
	inv inventory.InventoryReadable,
	loader ServiceLoader,
	logger *slog.Logger,
) *Context {
	if loader == nil {
		loader = RegisteredLoader()
	}
	if logger == nil {
		logger = slog.Default()
	}

	context := &Context{
		inventory: inv,
		loader:    loader,
		logger:    logger,
	}
	context.Reload()
	return context
}

// Reload re-runs peer discovery and import validation, atomically
// replacing the peer set and the problem list.
func (c *Context) Reload() {
	var (
		newProblems []Problem
		newPeers    = make(map[string]model.Peer)
	)

	transaction, err := c.inventory.OpenTransactionReadable()
	if err != nil {
		newProblems = append(newProblems, InventoryProblem{Err: err})
	} else {
		defer transaction.Close()
		for _, supplier := range c.loader.Load() {
			peer, ok := loadPeer(transaction, supplier, newPeers, &newProblems)
			if ok {
				newPeers[peer.PackageName()] = peer
			}
		}
	}

	c.logger.Debug("runtime reload",
		"peers", len(newPeers),
		"problems", len(newProblems))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers = newPeers
	c.problems = newProblems
}

func loadPeer(
	transaction inventory.TransactionReadable,
	supplier Supplier,
	loaded map[string]model.Peer,
	problems *[]Problem,
) (model.Peer, bool) {
	factory, err := supplier()
	if err != nil {
		*problems = append(*problems, BrokenPeerFactory{
			Factory: fmt.Sprintf("%T", supplier),
			Err:     err,
		})
		return model.Peer{}, false
	}

	peer, err := factory.OpenPeer()
	if err != nil {
		*problems = append(*problems, BrokenPeerFactory{
			Factory: fmt.Sprintf("%T", factory),
			Err:     err,
		})
		return model.Peer{}, false
	}

	if _, conflict := loaded[peer.PackageName()]; conflict {
		*problems = append(*problems, ConflictingPeer{
			PackageName: peer.PackageName(),
		})
		return model.Peer{}, false
	}

	failed := false
	for _, identifier := range peer.ImportSet() {
		_, ok, err := transaction.PackageGet(identifier)
		switch {
		case err != nil:
			failed = true
			*problems = append(*problems, InventoryProblem{Err: err})
		case !ok:
			failed = true
			*problems = append(*problems, UnsatisfiedRequirement{
				PeerName: peer.PackageName(),
				Required: identifier,
			})
		}
	}
	if failed {
		return model.Peer{}, false
	}
	return peer, true
}

// Status returns the problems recorded by the most recent load.
func (c *Context) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	problems := make([]Problem, len(c.problems))
	copy(problems, c.problems)
	return Status{Problems: problems}
}

// FindFile resolves a file of a package imported by the requesting
// peer. The requester is the fully-qualified code package name of the
// caller. Fails with error-peer-missing if no peer is loaded for the
// requester, and with error-peer-import-missing if the peer does not
// import the target package.
func (c *Context) FindFile(
	requester string,
	target model.PackageName,
	path model.Path,
) (string, error) {
	c.mu.RLock()
	peer, ok := c.peers[requester]
	c.mu.RUnlock()

	if !ok {
		return "", errorcodes.New(
			errorcodes.ErrorPeerMissing,
			fmt.Sprintf("no peer is registered for package %s", requester))
	}

	version, ok := peer.Import(target)
	if !ok {
		return "", errorcodes.New(
			errorcodes.ErrorPeerImportMissing,
			fmt.Sprintf(
				"peer %s does not import package %s (imports: %v)",
				requester, target, peer.ImportSet()))
	}

	transaction, err := c.inventory.OpenTransactionReadable()
	if err != nil {
		return "", err
	}
	defer transaction.Close()

	return transaction.BlobFile(
		model.PackageIdentifier{Name: target, Version: version},
		path)
}

// OpenChannel resolves a file like FindFile and opens it for reading.
func (c *Context) OpenChannel(
	requester string,
	target model.PackageName,
	path model.Path,
) (*os.File, error) {
	file, err := c.FindFile(requester, target, path)
	if err != nil {
		return nil, err
	}
	channel, err := os.Open(file)
	if err != nil {
		return nil, errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}
	return channel, nil
}

// Close releases the inventory if this context opened it. A context
// created over a caller-owned inventory leaves it open.
func (c *Context) Close() error {
	if !c.ownsInv {
		return nil
	}
	return c.inventory.Close()
}
