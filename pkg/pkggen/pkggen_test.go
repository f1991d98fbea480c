package pkggen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/model"
	"github.com/io7m-com/sunburst/pkg/sqlite"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	base := t.TempDir()
	for name, content := range files {
		path := filepath.Join(base, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return base
}

func TestGenerate(t *testing.T) {
	source := writeTree(t, map[string]string{
		"a/b/c.txt": "see",
		"a/d.bin":   "dee",
		"top":       "top level",
	})

	identifier := model.MustPackageIdentifier("com.io7m.example.main:1.0.0")
	generator := New(Configuration{
		SourceDirectory: source,
		Identifier:      identifier,
		Metadata:        map[string]string{"title": "Example"},
	}, nil)

	result, err := generator.Generate(context.Background())
	require.NoError(t, err)

	pack := result.Package
	assert.Equal(t, identifier, pack.Identifier)
	assert.Equal(t, "Example", pack.Metadata["title"])
	require.Len(t, pack.Entries, 3)

	entry, ok := pack.Entries[model.MustPath("/a/b/c.txt")]
	require.True(t, ok)
	assert.Equal(t, uint64(3), entry.Blob.Size)
	assert.True(t, strings.HasPrefix(entry.Blob.ContentType, "text/plain"))

	expected, err := model.HashOf(model.SHA2_256, strings.NewReader("see"))
	require.NoError(t, err)
	assert.Equal(t, expected, entry.Blob.Hash)

	binary, ok := pack.Entries[model.MustPath("/a/d.bin")]
	require.True(t, ok)
	assert.Equal(t, "application/octet-stream", binary.Blob.ContentType)
}

func TestGenerateRejectsInvalidNames(t *testing.T) {
	source := writeTree(t, map[string]string{
		"Upper.txt": "bad segment",
	})

	generator := New(Configuration{
		SourceDirectory: source,
		Identifier:      model.MustPackageIdentifier("a.b:1.0.0"),
	}, nil)

	_, err := generator.Generate(context.Background())
	require.Error(t, err)
}

func TestInstall(t *testing.T) {
	source := writeTree(t, map[string]string{
		"x/one.txt": "one",
		"x/two.txt": "two",
	})

	identifier := model.MustPackageIdentifier("com.io7m.example.main:1.0.0")
	generator := New(Configuration{
		SourceDirectory: source,
		Identifier:      identifier,
	}, nil)

	result, err := generator.Generate(context.Background())
	require.NoError(t, err)

	inv, err := sqlite.OpenReadWrite(
		nil, inventory.Config{BaseDirectory: t.TempDir()}, nil)
	require.NoError(t, err)
	defer inv.Close()

	tx, err := inv.OpenTransaction()
	require.NoError(t, err)
	defer tx.Close()

	require.NoError(t, Install(tx, result))
	require.NoError(t, tx.Commit())

	rtx, err := inv.OpenTransactionReadable()
	require.NoError(t, err)
	defer rtx.Close()

	pack, found, err := rtx.PackageGet(identifier)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, pack.Entries, 2)

	file, err := rtx.BlobFile(identifier, model.MustPath("/x/one.txt"))
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)
}
