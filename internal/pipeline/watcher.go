package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind describes the type of file change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota // Diagram edited or added
	ChangeRemoved                    // Diagram deleted
)

// Change represents a detected change in the diagrams directory.
type Change struct {
	Kind ChangeKind
	File string // Path as reported by fsnotify
}

// Watcher monitors a diagrams directory for .drawio changes using fsnotify.
type Watcher struct {
	Dir     string
	Changes <-chan Change // Read-only external channel

	changes chan Change // Internal write channel
	done    chan struct{}
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	ignore map[string]time.Time // paths suppressed until the stored deadline
}

// NewWatcher creates a new watcher for the given diagrams directory.
func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan Change, 16)
	w := &Watcher{
		Dir:     dir,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
		ignore:  make(map[string]time.Time),
	}
	return w, nil
}

// Ignore suppresses events for path for a short window. Callers use it for
// files they are about to touch themselves, like an identifier rename, so the
// watcher does not feed the pipeline its own output.
func (w *Watcher) Ignore(path string) {
	w.mu.Lock()
	w.ignore[path] = time.Now().Add(2 * time.Second)
	w.mu.Unlock()
}

func (w *Watcher) ignored(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	deadline, ok := w.ignore[path]
	if !ok {
		return false
	}
	if time.Now().After(deadline) {
		delete(w.ignore, path)
		return false
	}
	return true
}

// Start begins watching the diagrams directory for changes.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: editors fire several events per save; track the last event
	// time per file and emit once things settle.
	const debounce = 200 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				// Drain pending on close.
				for file := range pending {
					w.emitChange(file)
				}
				return
			}

			if !w.isDiagramFile(event.Name) || w.ignored(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}

		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					w.emitChange(file)
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

func (w *Watcher) isDiagramFile(name string) bool {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".drawio") {
		return false
	}
	// Editors write through hidden temp files.
	if strings.HasPrefix(base, ".") {
		return false
	}
	return true
}

func (w *Watcher) emitChange(file string) {
	c := Change{Kind: ChangeModified, File: file}
	if _, err := os.Stat(file); err != nil {
		c.Kind = ChangeRemoved
	}
	// Non-blocking: a consumer that stopped reading (or fell behind) must not
	// wedge the loop or Stop. A dropped change re-fires on the next save.
	select {
	case w.changes <- c:
	default:
	}
}
