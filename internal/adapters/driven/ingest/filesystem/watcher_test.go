package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestor_HandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("create ingests a new text file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "new.txt", "fresh")
		ingestor, _, indexer := newTestIngestor(t, dir)

		ingestor.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Create})

		assert.Equal(t, []string{"new.txt"}, indexer.indexedIDs())
	})

	t.Run("write re-ingests a modified file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "doc.txt", "updated")
		ingestor, docs, _ := newTestIngestor(t, dir)

		ingestor.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Write})

		doc, err := docs.Get(ctx, "doc.txt")
		require.NoError(t, err)
		assert.Equal(t, "updated", doc.Content)
	})

	t.Run("remove drops the document", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "doc.txt", "content")
		ingestor, _, indexer := newTestIngestor(t, dir)
		ingestor.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Create})

		require.NoError(t, os.Remove(path))
		ingestor.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Remove})

		assert.Equal(t, []string{"doc.txt"}, indexer.removedIDs())
	})

	t.Run("rename drops the old path", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "doc.txt", "content")
		ingestor, _, indexer := newTestIngestor(t, dir)

		ingestor.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Rename})

		assert.Equal(t, []string{"doc.txt"}, indexer.removedIDs())
	})

	t.Run("hidden paths are ignored", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, ".secret.txt", "unseen")
		ingestor, _, indexer := newTestIngestor(t, dir)

		ingestor.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Create})
		ingestor.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Remove})

		assert.Empty(t, indexer.indexedIDs())
		assert.Empty(t, indexer.removedIDs())
	})

	t.Run("non-text files are ignored", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "image.png", "binary")
		ingestor, _, indexer := newTestIngestor(t, dir)

		ingestor.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Create})
		ingestor.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Write})

		assert.Empty(t, indexer.indexedIDs())
	})

	t.Run("vanished file on create is ignored", func(t *testing.T) {
		dir := t.TempDir()
		ingestor, _, indexer := newTestIngestor(t, dir)

		ingestor.handleEvent(ctx, nil, fsnotify.Event{
			Name: filepath.Join(dir, "gone.txt"),
			Op:   fsnotify.Create,
		})

		assert.Empty(t, indexer.indexedIDs())
	})
}

func TestIngestor_WatchClosed(t *testing.T) {
	ingestor, _, _ := newTestIngestor(t, t.TempDir())
	require.NoError(t, ingestor.Close())

	err := ingestor.Watch(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}
