package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ingestor splits raw documents into chunks and loads them into the store.
type Ingestor struct {
	store        *Store
	chunkSize    int
	chunkOverlap int
	log          *zap.Logger
}

// NewIngestor creates an ingestor with the given chunking parameters.
func NewIngestor(store *Store, chunkSize, chunkOverlap int, log *zap.Logger) *Ingestor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 200
	}
	return &Ingestor{
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		log:          log,
	}
}

// AddDocument splits one document and stores its chunks. Chunk embeddings
// are computed concurrently; a single failed chunk fails the ingest.
func (i *Ingestor) AddDocument(ctx context.Context, content, source string) (int, error) {
	chunks := SplitText(content, i.chunkSize, i.chunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, chunk := range chunks {
		g.Go(func() error {
			return i.store.Add(gctx, chunk, source)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("ingest %s: %w", source, err)
	}

	i.log.Info("document ingested",
		zap.String("source", source), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// AddFile reads and ingests one file, using its path as the source.
func (i *Ingestor) AddFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return i.AddDocument(ctx, string(data), path)
}

// ingestible reports whether a file looks like a text document worth
// loading into the knowledge base.
func ingestible(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".rst", ".csv", ".json", ".yaml", ".yml", ".html":
		return true
	}
	return false
}

// Watcher ingests files from a directory as they appear or change.
type Watcher struct {
	ingestor *Ingestor
	dir      string
	log      *zap.Logger
}

// NewWatcher creates a watcher over dir.
func NewWatcher(ingestor *Ingestor, dir string, log *zap.Logger) *Watcher {
	return &Watcher{ingestor: ingestor, dir: dir, log: log}
}

// Run watches until ctx is cancelled. Writes are debounced briefly so a
// file being copied in is ingested once, after it settles.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching for knowledge-base documents", zap.String("dir", w.dir))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !ingestible(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))

		case <-ticker.C:
			for path, touched := range pending {
				if time.Since(touched) < time.Second {
					continue
				}
				delete(pending, path)
				if _, err := w.ingestor.AddFile(ctx, path); err != nil {
					w.log.Warn("failed to ingest file", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}
}
