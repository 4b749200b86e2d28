package dataset

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

const readParallel = 4

// Cache holds decoded parquet files keyed by path. Each path is read at
// most once until cleared; callers always get their own copy of the rows.
// Concurrent loads of one path share a single read, and a slow read never
// blocks loads of other paths.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	// beforeRead runs ahead of every file read; tests use it to hold a read open.
	beforeRead func(path string)
}

type entry struct {
	done chan struct{}
	rows any
	err  error
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Load returns the rows of the parquet file at path decoded as T. A failed
// read is not cached, so the next call retries it.
func Load[T any](c *Cache, path string) ([]T, error) {
	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		e = &entry{done: make(chan struct{})}
		c.entries[path] = e
	}
	c.mu.Unlock()

	if ok {
		<-e.done
	} else {
		c.fill(e, path, func() (any, error) { return ReadFile[T](path) })
	}

	if e.err != nil {
		return nil, e.err
	}
	rows, ok := e.rows.([]T)
	if !ok {
		return nil, fmt.Errorf("dataset %s cached with a different row type", path)
	}
	return slices.Clone(rows), nil
}

func (c *Cache) fill(e *entry, path string, read func() (any, error)) {
	defer close(e.done)

	slog.Info("loading dataset", "path", path)
	if c.beforeRead != nil {
		c.beforeRead(path)
	}
	e.rows, e.err = read()
	if e.err == nil {
		return
	}
	c.mu.Lock()
	if c.entries[path] == e {
		delete(c.entries, path)
	}
	c.mu.Unlock()
}

// Clear drops the cached rows for path, or everything when path is "".
// A read already in flight still completes for its callers.
func (c *Cache) Clear(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if path == "" {
		clear(c.entries)
		slog.Info("dataset cache cleared")
		return
	}
	delete(c.entries, path)
	slog.Info("dataset cache cleared", "path", path)
}

// ReadFile decodes every row of a local parquet file.
func ReadFile[T any](path string) ([]T, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(T), readParallel)
	if err != nil {
		return nil, fmt.Errorf("reading parquet footer %s: %w", path, err)
	}
	defer pr.ReadStop()

	rows := make([]T, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return rows, nil
}
