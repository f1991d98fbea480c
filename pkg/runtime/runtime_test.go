package runtime

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/io7m-com/sunburst/pkg/errorcodes"
	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/model"
	"github.com/io7m-com/sunburst/pkg/sqlite"
)

const testPeerName = "com.io7m.sunburst.tests"

// peerFactoryFunc adapts a function to the PeerFactory interface.
type peerFactoryFunc func() (model.Peer, error)

func (f peerFactoryFunc) OpenPeer() (model.Peer, error) {
	return f()
}

func peerWithImport(t *testing.T, packageName string, imports ...string) model.Peer {
	t.Helper()
	builder := model.NewPeerBuilder(packageName)
	for _, text := range imports {
		require.NoError(t, builder.AddImportIdentifier(model.MustPackageIdentifier(text)))
	}
	return builder.Build()
}

func fixedPeer(peer model.Peer) PeerFactory {
	return peerFactoryFunc(func() (model.Peer, error) { return peer, nil })
}

// setupInventory creates an inventory holding package a.b.c:1.0.0 with
// one entry /x, and returns the base directory and the entry content
// hash.
func setupInventory(t *testing.T) (string, model.Hash) {
	t.Helper()
	base := t.TempDir()

	inv, err := sqlite.OpenReadWrite(
		nil, inventory.Config{BaseDirectory: base}, nil)
	require.NoError(t, err)
	defer inv.Close()

	tx, err := inv.OpenTransaction()
	require.NoError(t, err)
	defer tx.Close()

	const data = "file contents"
	hash, err := model.HashOf(model.SHA2_256, strings.NewReader(data))
	require.NoError(t, err)
	blob := model.Blob{
		Size:        uint64(len(data)),
		ContentType: "text/plain",
		Hash:        hash,
	}
	require.NoError(t, tx.BlobAdd(blob, strings.NewReader(data)))

	path := model.MustPath("/x")
	require.NoError(t, tx.PackagePut(model.Package{
		Identifier: model.MustPackageIdentifier("a.b.c:1.0.0"),
		Metadata:   map[string]string{},
		Entries: map[model.Path]model.PackageEntry{
			path: {Path: path, Blob: blob},
		},
	}))
	require.NoError(t, tx.Commit())
	return base, hash
}

func openContext(t *testing.T, base string, loader ServiceLoader) *Context {
	t.Helper()
	context, err := OpenWithLoader(
		inventory.Config{BaseDirectory: base}, loader, nil)
	require.NoError(t, err)
	t.Cleanup(func() { context.Close() })
	return context
}

func TestFindFile(t *testing.T) {
	base, hash := setupInventory(t)

	peer := peerWithImport(t, testPeerName, "a.b.c:1.0.0")
	context := openContext(t, base, FixedLoader(fixedPeer(peer)))

	require.False(t, context.Status().IsFailed())

	file, err := context.FindFile(
		testPeerName, model.MustPackageName("a.b.c"), model.MustPath("/x"))
	require.NoError(t, err)

	content, err := os.Open(file)
	require.NoError(t, err)
	defer content.Close()
	received, err := model.HashOf(model.SHA2_256, content)
	require.NoError(t, err)
	assert.Equal(t, hash, received)
}

func TestFindFilePeerMissing(t *testing.T) {
	base, _ := setupInventory(t)

	peer := peerWithImport(t, testPeerName, "a.b.c:1.0.0")
	context := openContext(t, base, FixedLoader(fixedPeer(peer)))

	_, err := context.FindFile(
		"not.imported", model.MustPackageName("a.b.c"), model.MustPath("/x"))
	require.Error(t, err)
	code, ok := errorcodes.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errorcodes.ErrorPeerMissing, code)
}

func TestFindFileImportMissing(t *testing.T) {
	base, _ := setupInventory(t)

	// The peer declares no imports at all.
	peer := peerWithImport(t, testPeerName)
	context := openContext(t, base, FixedLoader(fixedPeer(peer)))

	_, err := context.FindFile(
		testPeerName, model.MustPackageName("a.b.c"), model.MustPath("/x"))
	require.Error(t, err)
	code, ok := errorcodes.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errorcodes.ErrorPeerImportMissing, code)
}

func TestFindFilePathNonexistent(t *testing.T) {
	base, _ := setupInventory(t)

	peer := peerWithImport(t, testPeerName, "a.b.c:1.0.0")
	context := openContext(t, base, FixedLoader(fixedPeer(peer)))

	_, err := context.FindFile(
		testPeerName, model.MustPackageName("a.b.c"), model.MustPath("/missing"))
	require.Error(t, err)
	code, ok := errorcodes.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errorcodes.ErrorPathNonexistent, code)
}

func TestOpenChannel(t *testing.T) {
	base, _ := setupInventory(t)

	peer := peerWithImport(t, testPeerName, "a.b.c:1.0.0")
	context := openContext(t, base, FixedLoader(fixedPeer(peer)))

	channel, err := context.OpenChannel(
		testPeerName, model.MustPackageName("a.b.c"), model.MustPath("/x"))
	require.NoError(t, err)
	defer channel.Close()

	data := make([]byte, 4)
	_, err = channel.Read(data)
	require.NoError(t, err)
	assert.Equal(t, []byte("file"), data)
}

func TestBrokenFactory(t *testing.T) {
	base, _ := setupInventory(t)

	broken := peerFactoryFunc(func() (model.Peer, error) {
		return model.Peer{}, errors.New("factory exploded")
	})
	good := fixedPeer(peerWithImport(t, testPeerName, "a.b.c:1.0.0"))

	context := openContext(t, base, FixedLoader(broken, good))

	status := context.Status()
	require.True(t, status.IsFailed())
	require.Len(t, status.Problems, 1)
	assert.IsType(t, BrokenPeerFactory{}, status.Problems[0])

	// The healthy peer still loaded.
	_, err := context.FindFile(
		testPeerName, model.MustPackageName("a.b.c"), model.MustPath("/x"))
	require.NoError(t, err)
}

func TestBrokenSupplier(t *testing.T) {
	base, _ := setupInventory(t)

	loader := ServiceLoaderFunc(func() []Supplier {
		return []Supplier{
			func() (PeerFactory, error) { return nil, errors.New("supplier exploded") },
		}
	})
	context := openContext(t, base, loader)

	status := context.Status()
	require.True(t, status.IsFailed())
	assert.IsType(t, BrokenPeerFactory{}, status.Problems[0])
}

func TestConflictingPeer(t *testing.T) {
	base, _ := setupInventory(t)

	first := fixedPeer(peerWithImport(t, testPeerName, "a.b.c:1.0.0"))
	second := fixedPeer(peerWithImport(t, testPeerName))

	context := openContext(t, base, FixedLoader(first, second))

	status := context.Status()
	require.True(t, status.IsFailed())
	require.Len(t, status.Problems, 1)
	conflict, ok := status.Problems[0].(ConflictingPeer)
	require.True(t, ok)
	assert.Equal(t, testPeerName, conflict.PackageName)

	// The first registration won; its import is still resolvable.
	_, err := context.FindFile(
		testPeerName, model.MustPackageName("a.b.c"), model.MustPath("/x"))
	require.NoError(t, err)
}

func TestUnsatisfiedRequirement(t *testing.T) {
	base, _ := setupInventory(t)

	peer := peerWithImport(t, testPeerName, "a.b.c:1.0.0", "no.such:9.9.9")
	context := openContext(t, base, FixedLoader(fixedPeer(peer)))

	status := context.Status()
	require.True(t, status.IsFailed())
	require.Len(t, status.Problems, 1)
	unsatisfied, ok := status.Problems[0].(UnsatisfiedRequirement)
	require.True(t, ok)
	assert.Equal(t, testPeerName, unsatisfied.PeerName)
	assert.Equal(t, "no.such:9.9.9", unsatisfied.Required.String())

	// The rejected peer is not registered at all.
	_, err := context.FindFile(
		testPeerName, model.MustPackageName("a.b.c"), model.MustPath("/x"))
	require.Error(t, err)
	code, _ := errorcodes.CodeOf(err)
	assert.Equal(t, errorcodes.ErrorPeerMissing, code)
}

func TestReloadIdempotent(t *testing.T) {
	base, _ := setupInventory(t)

	peer := peerWithImport(t, testPeerName, "a.b.c:1.0.0")
	context := openContext(t, base, FixedLoader(fixedPeer(peer)))

	for i := 0; i < 3; i++ {
		context.Reload()
		assert.False(t, context.Status().IsFailed())

		_, err := context.FindFile(
			testPeerName, model.MustPackageName("a.b.c"), model.MustPath("/x"))
		require.NoError(t, err)
	}
}

func TestRegisteredLoader(t *testing.T) {
	peer := peerWithImport(t, "com.io7m.sunburst.registered")
	RegisterPeerFactory(fixedPeer(peer))

	suppliers := RegisteredLoader().Load()
	require.NotEmpty(t, suppliers)

	factory, err := suppliers[len(suppliers)-1]()
	require.NoError(t, err)
	loaded, err := factory.OpenPeer()
	require.NoError(t, err)
	assert.Equal(t, "com.io7m.sunburst.registered", loaded.PackageName())
}
