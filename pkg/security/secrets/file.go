package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileProvider resolves secrets from files in a single directory, one file
// per secret. Values are cached after the first read and invalidated when
// the file changes on disk, so rotated secrets take effect without a
// restart. Secret files must not be readable by group or world.
type FileProvider struct {
	dir     string
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewFileProvider returns a provider rooted at dir and starts watching it
// for changes.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("secret directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secret path %s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating secret watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching secret directory: %w", err)
	}

	p := &FileProvider{
		dir:     dir,
		watcher: watcher,
		logger:  slog.Default().With("component", "secrets"),
		cache:   make(map[string]string),
	}
	go p.watch()
	return p, nil
}

// GetSecret reads the file named name under the provider's directory.
func (p *FileProvider) GetSecret(_ context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	p.mu.RLock()
	v, ok := p.cache[name]
	p.mu.RUnlock()
	if ok {
		return v, nil
	}

	path := filepath.Join(p.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("reading secret %s: %w", name, err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", fmt.Errorf("secret file %s has permissions %04o, want 0600 or stricter", name, perm)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading secret %s: %w", name, err)
	}
	v = strings.TrimSpace(string(raw))
	if v == "" {
		return "", fmt.Errorf("%w: %s (file is empty)", ErrNotFound, name)
	}

	p.mu.Lock()
	p.cache[name] = v
	p.mu.Unlock()
	return v, nil
}

// Close stops the directory watcher.
func (p *FileProvider) Close() error {
	return p.watcher.Close()
}

func (p *FileProvider) watch() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			p.mu.Lock()
			_, cached := p.cache[name]
			delete(p.cache, name)
			p.mu.Unlock()
			if cached {
				p.logger.Info("secret invalidated after file change", "secret", name, "op", event.Op.String())
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("secret watcher error", "error", err)
		}
	}
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("secret name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("secret name %q must be a bare file name", name)
	}
	return nil
}
