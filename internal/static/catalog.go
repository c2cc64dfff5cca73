// Package static serves files from a public directory. Only request paths
// present in the Catalog are ever opened.
package static

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Catalog is the set of request paths that map to files under a directory.
type Catalog struct {
	dir   string
	allow map[string]struct{}

	mu    sync.RWMutex
	paths map[string]string
}

// NewCatalog scans dir. When allow is not empty only those request paths
// are served, and only while the file exists.
func NewCatalog(dir string, allow []string) (*Catalog, error) {
	c := &Catalog{
		dir:   dir,
		paths: map[string]string{},
	}
	if len(allow) > 0 {
		c.allow = make(map[string]struct{}, len(allow))
		for _, p := range allow {
			c.allow[path.Clean("/"+p)] = struct{}{}
		}
	}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Dir() string {
	return c.dir
}

// Refresh rescans the directory.
func (c *Catalog) Refresh() error {
	found := map[string]string{}
	err := filepath.WalkDir(c.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(c.dir, p)
		if err != nil {
			return err
		}
		reqPath := "/" + filepath.ToSlash(rel)
		if c.allow != nil {
			if _, ok := c.allow[reqPath]; !ok {
				return nil
			}
		}
		found[reqPath] = p
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("scanning %s: %w", c.dir, err)
	}

	c.mu.Lock()
	c.paths = found
	c.mu.Unlock()
	return nil
}

// Resolve returns the file behind a request path.
func (c *Catalog) Resolve(reqPath string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.paths[reqPath]
	return p, ok
}

func (c *Catalog) Exists(reqPath string) bool {
	_, ok := c.Resolve(reqPath)
	return ok
}

// Paths returns the served request paths in order.
func (c *Catalog) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]string, 0, len(c.paths))
	for p := range c.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Watch refreshes the catalog whenever files under the directory are
// created, removed or renamed. It blocks until ctx is done.
func (c *Catalog) Watch(ctx context.Context, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := c.addDirs(watcher); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if err := c.Refresh(); err != nil {
				logger.Warn("static catalog refresh failed", zap.Error(err))
				continue
			}
			logger.Debug("static catalog refreshed",
				zap.String("event", event.String()),
				zap.Int("paths", len(c.Paths())),
			)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("static watcher error", zap.Error(err))
		}
	}
}

func (c *Catalog) addDirs(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(c.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(p); err != nil {
				return fmt.Errorf("watching %s: %w", p, err)
			}
		}
		return nil
	})
}
