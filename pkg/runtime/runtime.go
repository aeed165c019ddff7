// Package runtime reports on the currently active SPFS runtime: the
// rendered root a process is living inside, as published by whatever
// mounted or bind-rendered it there.
package runtime

import (
	"os"

	"github.com/fsnotify/fsnotify"
)

// EnvVar is the environment variable carrying the active runtime root.
// Its presence, not its syntactic validity, is what enables ActiveRuntime.
const EnvVar = "SPFS_RUNTIME"

// NoRuntimeError is returned by ActiveRuntime when SPFS_RUNTIME is unset.
type NoRuntimeError struct{}

func (NoRuntimeError) Error() string {
	return "runtime: no active runtime (SPFS_RUNTIME is not set)"
}

// Runtime describes the rendered root a process is currently living in.
type Runtime struct {
	Root string
}

// ActiveRuntime reads SPFS_RUNTIME and returns the runtime it names.
// Returns NoRuntimeError if the variable is unset or empty.
func ActiveRuntime() (Runtime, error) {
	root := os.Getenv(EnvVar)
	if root == "" {
		return Runtime{}, NoRuntimeError{}
	}
	return Runtime{Root: root}, nil
}

// Watcher observes a Runtime's root for external teardown (removal of the
// root itself, as performed by whatever unmounts/un-renders it) and
// delivers a single notification on Torndown when that happens.
type Watcher struct {
	watcher  *fsnotify.Watcher
	Torndown chan struct{}
	errs     chan error
}

// Watch begins watching rt's root for removal. The caller must call
// Close to release the underlying inotify/kqueue handle.
func Watch(rt Runtime) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(rt.Root); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		Torndown: make(chan struct{}, 1),
		errs:     make(chan error, 1),
	}
	go w.run(rt.Root)
	return w, nil
}

func (w *Watcher) run(root string) {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name == root && (ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0) {
				select {
				case w.Torndown <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Errors returns the channel carrying watch-loop errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
