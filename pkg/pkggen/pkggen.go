// Package pkggen generates Sunburst packages from directory trees: it
// walks a source directory, hashes every regular file, and produces a
// package whose entries mirror the tree. The result can be installed
// into an inventory in one transaction.
package pkggen

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/io7m-com/sunburst/pkg/errorcodes"
	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/model"
)

// defaultContentType is used when the file extension resolves to no
// MIME type.
const defaultContentType = "application/octet-stream"

// Configuration configures a generator.
type Configuration struct {
	// SourceDirectory is the tree to package.
	SourceDirectory string

	// Identifier names the generated package.
	Identifier model.PackageIdentifier

	// Metadata is copied into the generated package.
	Metadata map[string]string

	// Concurrency bounds parallel file hashing; zero means GOMAXPROCS.
	Concurrency int
}

// Result is a generated package plus the mapping back to the source
// files, used when installing.
type Result struct {
	Package model.Package
	Sources map[model.Path]string
}

// Generator builds packages from directory trees.
type Generator struct {
	config Configuration
	logger *slog.Logger
}

// New creates a generator.
func New(config Configuration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{config: config, logger: logger}
}

// Generate walks the source directory and hashes every regular file,
// in parallel, into a package.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	base := g.config.SourceDirectory

	var files []string
	err := filepath.WalkDir(base, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	limit := g.config.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	var (
		mu      sync.Mutex
		entries = make(map[model.Path]model.PackageEntry, len(files))
		sources = make(map[model.Path]string, len(files))
	)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	for _, file := range files {
		file := file
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			path, err := packagePath(base, file)
			if err != nil {
				return err
			}
			entry, err := hashFile(path, file)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			entries[path] = entry
			sources[path] = file
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	g.logger.Debug("package generated",
		"identifier", g.config.Identifier,
		"entries", len(entries))

	metadata := make(map[string]string, len(g.config.Metadata))
	for key, value := range g.config.Metadata {
		metadata[key] = value
	}

	return &Result{
		Package: model.Package{
			Identifier: g.config.Identifier,
			Metadata:   metadata,
			Entries:    entries,
		},
		Sources: sources,
	}, nil
}

// packagePath maps a file under base to its virtual package path.
func packagePath(base, file string) (model.Path, error) {
	relative, err := filepath.Rel(base, file)
	if err != nil {
		return model.Path{}, errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	path := model.RootPath()
	for _, segment := range strings.Split(filepath.ToSlash(relative), "/") {
		next, err := path.Plus(segment)
		if err != nil {
			return model.Path{}, fmt.Errorf("file %s: %w", file, err)
		}
		path = next
	}
	return path, nil
}

// hashFile produces the package entry for one file.
func hashFile(path model.Path, file string) (model.PackageEntry, error) {
	input, err := os.Open(file)
	if err != nil {
		return model.PackageEntry{}, errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}
	defer input.Close()

	info, err := input.Stat()
	if err != nil {
		return model.PackageEntry{}, errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	hash, err := model.HashOf(model.SHA2_256, input)
	if err != nil {
		return model.PackageEntry{}, errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = defaultContentType
	}

	return model.PackageEntry{
		Path: path,
		Blob: model.Blob{
			Size:        uint64(info.Size()),
			ContentType: contentType,
			Hash:        hash,
		},
	}, nil
}

// Install streams every source file into the transaction's blob store
// and records the package. The caller commits.
func Install(transaction inventory.Transaction, result *Result) error {
	for path, entry := range result.Package.Entries {
		source, ok := result.Sources[path]
		if !ok {
			return errorcodes.New(
				errorcodes.ErrorIO,
				fmt.Sprintf("no source file recorded for path %s", path))
		}

		input, err := os.Open(source)
		if err != nil {
			return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
		}
		err = transaction.BlobAdd(entry.Blob, input)
		input.Close()
		if err != nil {
			return err
		}
	}
	return transaction.PackagePut(result.Package)
}
