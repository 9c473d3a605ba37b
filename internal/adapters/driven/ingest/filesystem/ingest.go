// Package filesystem ingests documents from a local directory tree.
// Each text file becomes a corpus document keyed by its slash-separated
// path relative to the root, and every ingested document is marked for
// embedding through the indexer.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driving"
	"github.com/historia-labs/historia-indexing/internal/logger"
)

// textExtensions lists the file extensions treated as ingestable text.
// Everything else is skipped during walks and watch events.
var textExtensions = map[string]bool{
	"":      true,
	".txt":  true,
	".md":   true,
	".rst":  true,
	".html": true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".csv":  true,
	".go":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".sql":  true,
	".sh":   true,
}

// Ingestor walks a directory tree and feeds its files into the corpus.
type Ingestor struct {
	root    string
	docs    driven.DocumentStore
	indexer driving.Indexer

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// New creates an Ingestor rooted at the given directory. Path
// validation happens on Ingest or Watch, not here.
func New(root string, docs driven.DocumentStore, indexer driving.Indexer) *Ingestor {
	return &Ingestor{
		root:    root,
		docs:    docs,
		indexer: indexer,
	}
}

// Validate checks that the root path exists and is a directory.
func (i *Ingestor) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(i.root)
	if os.IsNotExist(err) {
		return fmt.Errorf("root path does not exist: %s", i.root)
	}
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path is not a directory: %s", i.root)
	}
	return nil
}

// Ingest walks the tree once and upserts every ingestable file. It
// returns the number of documents saved. Hidden files and directories
// are skipped, as are files without a recognised text extension.
func (i *Ingestor) Ingest(ctx context.Context) (int, error) {
	if err := i.Validate(ctx); err != nil {
		return 0, err
	}

	count := 0
	err := filepath.WalkDir(i.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != i.root && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) || !isTextFile(d.Name()) {
			return nil
		}
		if err := i.ingestFile(ctx, path); err != nil {
			logger.Warn("skipping %s: %v", path, err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walk %s: %w", i.root, err)
	}
	return count, nil
}

// ingestFile reads one file, upserts the document, and marks it for
// embedding. Saving before marking keeps the pipeline from ever
// claiming a document whose content is not yet in the corpus.
func (i *Ingestor) ingestFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	id, err := i.documentID(path)
	if err != nil {
		return err
	}

	doc := &domain.Document{
		ID:      id,
		Title:   filepath.Base(path),
		Content: string(content),
		Metadata: map[string]any{
			"source":    "filesystem",
			"path":      path,
			"extension": strings.TrimPrefix(filepath.Ext(path), "."),
		},
	}
	if err := i.docs.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := i.indexer.IndexDocument(ctx, id); err != nil {
		return fmt.Errorf("mark for indexing: %w", err)
	}
	logger.Debug("ingested %s as %q", path, id)
	return nil
}

// removeFile drops the document and its embedding when the backing
// file disappears.
func (i *Ingestor) removeFile(ctx context.Context, path string) error {
	id, err := i.documentID(path)
	if err != nil {
		return err
	}
	if err := i.indexer.RemoveDocument(ctx, id); err != nil {
		return fmt.Errorf("remove from index: %w", err)
	}
	if err := i.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.Debug("removed %s (%q)", path, id)
	return nil
}

// documentID derives a stable corpus ID from the file path: the
// slash-separated path relative to the ingest root.
func (i *Ingestor) documentID(path string) (string, error) {
	rel, err := filepath.Rel(i.root, path)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// Close releases the watcher if one is running. Safe to call more
// than once.
func (i *Ingestor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	if i.watcher != nil {
		return i.watcher.Close()
	}
	return nil
}

// isHidden reports whether a file or directory name starts with a dot.
// The names "." and ".." are not considered hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// isTextFile reports whether the file extension is in the ingestable
// set. The check is case-insensitive.
func isTextFile(name string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}
