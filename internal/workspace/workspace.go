// Package workspace provides disposable, isolated working environments for
// parallel tile tasks. Each task gets a private directory and a private copy
// of the computational window so concurrent tasks never observe each other's
// state, and the shared base window is never mutated.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"tileprep/internal/scene"
)

// Error reports a workspace lifecycle failure.
type Error struct {
	Name   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("workspace %s: %s", e.Name, e.Reason)
}

// RunContext tracks every disposable resource created during one pipeline
// run and tears them down in reverse order of creation. Cleanup functions
// are idempotent: registering resources that release themselves early is
// safe, and Close may be called more than once.
type RunContext struct {
	ID   string
	Root string

	mu       sync.Mutex
	cleanups []func() error
	closed   bool
}

// NewRunContext creates the run scratch directory under baseDir. The run ID
// also namespaces workspace directories, so two runs sharing baseDir cannot
// collide.
func NewRunContext(baseDir string) (*RunContext, error) {
	id := uuid.NewString()
	root := filepath.Join(baseDir, "tileprep_"+id)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	rc := &RunContext{ID: id, Root: root}
	rc.Defer(func() error { return os.RemoveAll(root) })
	return rc, nil
}

// Defer registers a cleanup function to run on Close. Functions run in
// reverse registration order.
func (rc *RunContext) Defer(fn func() error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cleanups = append(rc.cleanups, fn)
}

// Close releases everything registered with the run, newest first. The first
// error is returned but cleanup continues past failures. Subsequent calls
// are no-ops.
func (rc *RunContext) Close() error {
	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return nil
	}
	rc.closed = true
	cleanups := rc.cleanups
	rc.cleanups = nil
	rc.mu.Unlock()

	var first error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Workspace is a private environment for a single task: its own directory
// and its own copy of the computational window. Release is idempotent.
type Workspace struct {
	Name   string
	Dir    string
	Region scene.Region

	release   sync.Once
	onRelease func()
	err       error
}

// Isolator hands out workspaces scoped to one run. The base region is copied
// into each workspace by value, so window changes made by a task stay inside
// that task. Workspace names are unique among live workspaces; a released
// name may be acquired again by a later batch.
type Isolator struct {
	rc   *RunContext
	base scene.Region

	mu    sync.Mutex
	names map[string]bool
}

// NewIsolator creates an isolator over the run's scratch root.
func NewIsolator(rc *RunContext, base scene.Region) *Isolator {
	return &Isolator{rc: rc, base: base, names: map[string]bool{}}
}

// BaseRegion returns the shared window the isolator was created with.
func (iso *Isolator) BaseRegion() scene.Region { return iso.base }

// Acquire creates a named workspace. The workspace is registered with the
// run context, so an abandoned workspace is still removed when the run
// closes. Acquiring a name already held by a live workspace is an error.
func (iso *Isolator) Acquire(name string) (*Workspace, error) {
	iso.mu.Lock()
	if iso.names[name] {
		iso.mu.Unlock()
		return nil, &Error{Name: name, Reason: "workspace name already in use"}
	}
	iso.names[name] = true
	iso.mu.Unlock()

	dir := filepath.Join(iso.rc.Root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		iso.mu.Lock()
		delete(iso.names, name)
		iso.mu.Unlock()
		return nil, fmt.Errorf("create workspace %s: %w", name, err)
	}
	ws := &Workspace{Name: name, Dir: dir, Region: iso.base}
	ws.onRelease = func() {
		iso.mu.Lock()
		delete(iso.names, name)
		iso.mu.Unlock()
	}
	iso.rc.Defer(ws.Release)
	return ws, nil
}

// Release removes the workspace directory and frees its name for reuse.
// Safe to call multiple times; later calls return the first outcome.
func (ws *Workspace) Release() error {
	ws.release.Do(func() {
		if err := os.RemoveAll(ws.Dir); err != nil {
			ws.err = fmt.Errorf("release workspace %s: %w", ws.Name, err)
		}
		if ws.onRelease != nil {
			ws.onRelease()
		}
	})
	return ws.err
}

// Path resolves a file name inside the workspace directory.
func (ws *Workspace) Path(name string) string {
	return filepath.Join(ws.Dir, name)
}

// VerifyBase checks that the shared window still matches the snapshot taken
// before a batch. A mismatch means some task leaked state past its isolation
// boundary.
func VerifyBase(before, after scene.Region) error {
	if !before.Equal(after) {
		return fmt.Errorf("base region changed during batch: had %s, now %s", before, after)
	}
	return nil
}
