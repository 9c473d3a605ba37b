package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/historia-labs/historia-indexing/internal/adapters/driven/storage/memory"
	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

// recordingIndexer captures index and remove calls for assertions.
type recordingIndexer struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (r *recordingIndexer) IndexDocument(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, documentID)
	return nil
}

func (r *recordingIndexer) RemoveDocument(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, documentID)
	return nil
}

func (r *recordingIndexer) ProcessPending(_ context.Context, _ int) (int, error) {
	return 0, nil
}

func (r *recordingIndexer) Status(_ context.Context, _ string) (*domain.IndexEntry, error) {
	return nil, domain.ErrNotFound
}

func (r *recordingIndexer) indexedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.indexed...)
}

func (r *recordingIndexer) removedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestIngestor(t *testing.T, root string) (*Ingestor, *memory.DocumentStore, *recordingIndexer) {
	t.Helper()
	docs := memory.NewDocumentStore()
	indexer := &recordingIndexer{}
	ingestor := New(root, docs, indexer)
	t.Cleanup(func() { _ = ingestor.Close() })
	return ingestor, docs, indexer
}

func TestIngestor_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid directory", func(t *testing.T) {
		ingestor, _, _ := newTestIngestor(t, t.TempDir())
		assert.NoError(t, ingestor.Validate(ctx))
	})

	t.Run("missing path", func(t *testing.T) {
		ingestor, _, _ := newTestIngestor(t, "/nonexistent/path/for/test")
		err := ingestor.Validate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("path is a file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "file.txt", "content")
		ingestor, _, _ := newTestIngestor(t, path)
		err := ingestor.Validate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})
}

func TestIngestor_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests text files and marks them for indexing", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "readme.md", "# Readme")
		writeFile(t, dir, "notes/todo.txt", "remember the milk")
		ingestor, docs, indexer := newTestIngestor(t, dir)

		count, err := ingestor.Ingest(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.ElementsMatch(t, []string{"readme.md", "notes/todo.txt"}, indexer.indexedIDs())

		doc, err := docs.Get(ctx, "notes/todo.txt")
		require.NoError(t, err)
		assert.Equal(t, "todo.txt", doc.Title)
		assert.Equal(t, "remember the milk", doc.Content)
		assert.Equal(t, "filesystem", doc.Metadata["source"])
		assert.Equal(t, "txt", doc.Metadata["extension"])
	})

	t.Run("skips hidden files and directories", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "visible.txt", "seen")
		writeFile(t, dir, ".hidden.txt", "unseen")
		writeFile(t, dir, ".git/config.txt", "unseen")
		ingestor, _, indexer := newTestIngestor(t, dir)

		count, err := ingestor.Ingest(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, []string{"visible.txt"}, indexer.indexedIDs())
	})

	t.Run("skips non-text extensions", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "doc.md", "text")
		writeFile(t, dir, "image.png", "binary")
		writeFile(t, dir, "archive.tar.gz", "binary")
		ingestor, _, indexer := newTestIngestor(t, dir)

		count, err := ingestor.Ingest(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, []string{"doc.md"}, indexer.indexedIDs())
	})

	t.Run("extension matching is case-insensitive", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "README.MD", "shouty")
		ingestor, _, indexer := newTestIngestor(t, dir)

		count, err := ingestor.Ingest(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, []string{"README.MD"}, indexer.indexedIDs())
	})

	t.Run("re-ingest upserts in place", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "doc.txt", "version one")
		ingestor, docs, _ := newTestIngestor(t, dir)

		_, err := ingestor.Ingest(ctx)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))
		_, err = ingestor.Ingest(ctx)
		require.NoError(t, err)

		ids, err := docs.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"doc.txt"}, ids)

		doc, err := docs.Get(ctx, "doc.txt")
		require.NoError(t, err)
		assert.Equal(t, "version two", doc.Content)
	})

	t.Run("fails on invalid root", func(t *testing.T) {
		ingestor, _, _ := newTestIngestor(t, "/nonexistent/path/for/test")
		_, err := ingestor.Ingest(ctx)
		assert.Error(t, err)
	})
}

func TestIngestor_RemoveFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "content")
	ingestor, docs, indexer := newTestIngestor(t, dir)

	_, err := ingestor.Ingest(ctx)
	require.NoError(t, err)

	require.NoError(t, ingestor.removeFile(ctx, path))

	assert.Equal(t, []string{"doc.txt"}, indexer.removedIDs())
	_, err = docs.Get(ctx, "doc.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestor_Close(t *testing.T) {
	ingestor, _, _ := newTestIngestor(t, t.TempDir())

	assert.NoError(t, ingestor.Close())
	assert.NoError(t, ingestor.Close())
}

func TestIsHidden(t *testing.T) {
	assert.True(t, isHidden(".gitignore"))
	assert.False(t, isHidden("visible.txt"))
	assert.False(t, isHidden("."))
	assert.False(t, isHidden(".."))
}
