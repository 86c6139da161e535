package monitor

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 2 * time.Second

// Watcher turns filesystem activity under the session roots into refresh
// triggers, debounced so a burst of log appends costs one refresh.
type Watcher struct {
	watcher *fsnotify.Watcher
	roots   []string
}

func NewWatcher(roots ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{watcher: fw, roots: roots}
	for _, root := range roots {
		w.addTree(root)
	}
	return w, nil
}

// addTree registers root and its subdirectories. fsnotify is not recursive;
// new date-bucket directories get picked up from their parent's create event.
func (w *Watcher) addTree(root string) {
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || !info.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("watcher: watching %s: %v", path, err)
		}
		return nil
	})
}

// Run blocks, invoking trigger after each quiet period. It returns when ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context, trigger func()) {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(event.Name)
				}
			}
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %v", err)
		case <-fire:
			timer = nil
			trigger()
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
