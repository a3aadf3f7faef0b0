// Package assets indexes the asset directory, loads materials from it and
// reports files that change on disk.
package assets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/lumen/engine/core"
)

type Type int

const (
	TypeNone Type = iota
	TypeShader
	TypeImage
	TypeMaterial
)

func (t Type) String() string {
	switch t {
	case TypeShader:
		return "shader"
	case TypeImage:
		return "image"
	case TypeMaterial:
		return "material"
	}
	return "none"
}

func TypeOf(path string) Type {
	if strings.HasSuffix(path, ".material.toml") {
		return TypeMaterial
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return TypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return TypeImage
	}
	return TypeNone
}

type Info struct {
	// Path is relative to the asset root, with forward slashes.
	Path     string
	Type     Type
	Modified time.Time
}

// Manager keeps an index of the asset root. With watching enabled, changed
// files are collected in the background and announced on the event bus from
// Poll, which must be called on the main goroutine.
type Manager struct {
	root   string
	events *core.EventBus

	mu      sync.RWMutex
	assets  map[string]Info
	pending map[string]struct{}

	// decodes files off the main goroutine
	jobs *core.JobSystem

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewManager(root string, events *core.EventBus, watch bool) (*Manager, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("asset root is not a directory: " + root)
	}
	m := &Manager{
		root:    root,
		events:  events,
		assets:  make(map[string]Info),
		pending: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	if m.jobs, err = core.NewJobSystem(runtime.NumCPU(), 64); err != nil {
		return nil, err
	}
	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			m.jobs.Shutdown()
			return nil, err
		}
		m.watcher = w
	}
	if err := m.walk(root); err != nil {
		m.Close()
		return nil, err
	}
	if m.watcher != nil {
		m.wg.Add(1)
		go m.run()
	}
	core.LogInfo("Asset manager indexed %d assets under '%s'.", len(m.assets), root)
	return m, nil
}

func (m *Manager) Root() string { return m.root }

// Resolve turns a root relative asset path into a file system path.
func (m *Manager) Resolve(rel string) string {
	return filepath.Join(m.root, filepath.FromSlash(rel))
}

func (m *Manager) rel(path string) string {
	r, err := filepath.Rel(m.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(r)
}

func (m *Manager) Lookup(rel string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.assets[rel]
	return info, ok
}

// List returns the indexed assets of type t sorted by path.
func (m *Manager) List(t Type) []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.assets))
	for _, info := range m.assets {
		if info.Type == t {
			out = append(out, info)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// walk indexes every file under dir and watches every directory.
func (m *Manager) walk(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if m.watcher != nil {
				return m.watcher.Add(path)
			}
			return nil
		}
		m.index(path)
		return nil
	})
}

func (m *Manager) index(path string) bool {
	t := TypeOf(path)
	if t == TypeNone {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	rel := m.rel(path)
	m.mu.Lock()
	m.assets[rel] = Info{Path: rel, Type: t, Modified: fi.ModTime()}
	m.mu.Unlock()
	return true
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case e, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handle(e)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) handle(e fsnotify.Event) {
	switch {
	case e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename):
		rel := m.rel(e.Name)
		m.mu.Lock()
		delete(m.assets, rel)
		m.mu.Unlock()
	case e.Has(fsnotify.Create) || e.Has(fsnotify.Write):
		if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
			if e.Has(fsnotify.Create) {
				if err := m.walk(e.Name); err != nil {
					core.LogWarn("watch new directory '%s': %s", e.Name, err)
				}
			}
			return
		}
		if m.index(e.Name) {
			m.mu.Lock()
			m.pending[m.rel(e.Name)] = struct{}{}
			m.mu.Unlock()
		}
	}
}

// Poll fires EVENT_CODE_ASSET_CHANGED once per asset that changed since the
// previous call, with the root relative path as sender. It returns the paths
// in sorted order.
func (m *Manager) Poll() []string {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return nil
	}
	changed := make([]string, 0, len(m.pending))
	for p := range m.pending {
		changed = append(changed, p)
	}
	m.pending = make(map[string]struct{})
	m.mu.Unlock()

	sort.Strings(changed)
	for _, p := range changed {
		core.LogDebug("asset changed: %s", p)
		if m.events != nil {
			m.events.Fire(core.EVENT_CODE_ASSET_CHANGED, p, core.EventContext{})
		}
	}
	return changed
}

func (m *Manager) Close() error {
	if m.jobs != nil {
		m.jobs.Shutdown()
		m.jobs = nil
	}
	if m.watcher == nil {
		return nil
	}
	close(m.done)
	err := m.watcher.Close()
	m.wg.Wait()
	m.watcher = nil
	return err
}
