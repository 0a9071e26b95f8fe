package watcher

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// File is a file watcher that notifies when a file has been changed.
// The parent directory is watched so that editors replacing the file
// through a rename are noticed as well.
type File struct {
	watcher  *fsnotify.Watcher
	shutdown chan struct{}
	once     sync.Once

	mu    sync.RWMutex
	files map[string]struct{}
}

// NewFile creates a new File watcher
func NewFile() (*File, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &File{
		watcher:  w,
		shutdown: make(chan struct{}),
		files:    make(map[string]struct{}),
	}, nil
}

// Add adds a file to start watching
func (f *File) Add(path string) error {
	path = filepath.Clean(path)
	if err := f.watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	f.mu.Lock()
	f.files[path] = struct{}{}
	f.mu.Unlock()
	return nil
}

// Shutdown stop the file watching run loop
func (f *File) Shutdown() {
	f.once.Do(func() {
		close(f.shutdown)
	})
}

func (f *File) watched(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.files[filepath.Clean(name)]
	return ok
}

// Start is a runloop to watch for files changes from the file paths added from Add()
func (f *File) Start(notifier Notification) {
	defer f.watcher.Close()
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !f.watched(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				notifier.WatcherItemDidChange(event.Name)
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			notifier.WatcherDidError(err)
		case <-f.shutdown:
			return
		}
	}
}
