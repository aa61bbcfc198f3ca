package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const fileSuffix = ".json"

// ErrInvalidKey is returned for keys that cannot be used as file names
var ErrInvalidKey = errors.New("storage: invalid key")

// File keeps one file per key in a directory. Writes are atomic renames, and an fsnotify
// watcher on the directory reports writes made by other processes.
type File struct {
	dir     string
	watcher *fsnotify.Watcher
	subs    *subscribers
	logger  *zap.Logger

	mu       sync.Mutex
	lastSeen map[string]string // last value this handle read, wrote or reported, per key
	closed   bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// OpenFile opens (creating if needed) a file store rooted at dir and starts watching it
func OpenFile(dir string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	f := &File{
		dir:      dir,
		watcher:  watcher,
		subs:     newSubscribers(),
		logger:   logger.Named("storage.file"),
		lastSeen: make(map[string]string),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go f.run()
	return f, nil
}

func validKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, ".") && !strings.ContainsAny(key, `/\`)
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+fileSuffix)
}

func (f *File) read(key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	if !validKey(key) {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, ErrClosed
	}

	value, ok, err := f.read(key)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	f.lastSeen[key] = value
	return value, ok, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	// Held across the write so the watcher compares against the new value
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+"-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	f.lastSeen[key] = value
	return nil
}

func (f *File) Subscribe(key string) (<-chan Change, func()) {
	return f.subs.add(key)
}

// Close stops the watcher and closes all subscriptions
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.stopCh)
	<-f.doneCh
	f.subs.closeAll()
	return f.watcher.Close()
}

// run is the watcher event loop
func (f *File) run() {
	defer close(f.doneCh)

	for {
		select {
		case <-f.stopCh:
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handleEvent(event)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (f *File) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, fileSuffix) {
		return
	}
	key := strings.TrimSuffix(name, fileSuffix)
	if !validKey(key) {
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	value, _, err := f.read(key)
	if err != nil {
		f.mu.Unlock()
		f.logger.Warn("read changed key", zap.String("key", key), zap.Error(err))
		return
	}
	old := f.lastSeen[key]
	if value == old {
		f.mu.Unlock()
		return
	}
	f.lastSeen[key] = value
	f.mu.Unlock()

	f.logger.Debug("key changed on disk", zap.String("key", key))
	f.subs.publish(Change{Key: key, OldValue: old, NewValue: value})
}
