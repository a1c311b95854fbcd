// Package assets loads materials from TOML files and keeps them in sync
// with the files on disk.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/render"
)

var ErrLibraryClosed = errors.New("material library already closed")

type MaterialInfo struct {
	Material   *render.Material
	Layer      int
	Path       string
	LastLoaded time.Time
}

type MaterialLibrary struct {
	dir      string
	shaders  *Registry[*render.Shader]
	textures *Registry[TextureBinding]

	mutex     sync.RWMutex
	materials map[string]*MaterialInfo
	paths     map[string]string

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	isClosed bool
	reloads  atomic.Uint64

	events *core.EventBus
}

func NewMaterialLibrary(dir string, shaders *Registry[*render.Shader], textures *Registry[TextureBinding]) *MaterialLibrary {
	return &MaterialLibrary{
		dir:       dir,
		shaders:   shaders,
		textures:  textures,
		materials: make(map[string]*MaterialInfo),
		paths:     make(map[string]string),
	}
}

// SetEventBus makes the library fire material loaded and removed events on bus.
func (ml *MaterialLibrary) SetEventBus(bus *core.EventBus) {
	ml.mutex.Lock()
	ml.events = bus
	ml.mutex.Unlock()
}

func (ml *MaterialLibrary) notify(code core.SystemEventCode, name string, version int64) {
	ml.mutex.RLock()
	bus := ml.events
	ml.mutex.RUnlock()
	if bus != nil {
		bus.Fire(code, ml, core.EventContext{Name: name, Version: version})
	}
}

func isMaterialFile(path string) bool {
	return strings.HasSuffix(path, MaterialExt)
}

// Load reads every material file under the library directory. Broken files
// are logged and reported together, the others still load.
func (ml *MaterialLibrary) Load() error {
	var errs []error
	err := filepath.WalkDir(ml.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isMaterialFile(path) {
			return nil
		}
		m, err := ml.LoadFile(path)
		if err != nil {
			errs = append(errs, err)
		}
		if m != nil {
			ml.notify(core.EVENT_CODE_MATERIAL_LOADED, m.Name(), m.Version())
		}
		return nil
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

/**
 * @brief Loads or reloads one material file.
 *
 * A known material with the same shader is updated in place through its
 * setters, so render materials pick the change up with their next
 * EnsureVersion. A changed shader replaces the material.
 */
func (ml *MaterialLibrary) LoadFile(path string) (*render.Material, error) {
	mf, err := ReadMaterialFile(path)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	shader, ok := ml.shaders.Get(mf.Shader)
	if !ok {
		err := fmt.Errorf("%s: material %s uses unknown shader %q", path, mf.Name, mf.Shader)
		core.LogError(err.Error())
		return nil, err
	}

	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	info, exists := ml.materials[mf.Name]
	if !exists || info.Material.Shader() != shader {
		info = &MaterialInfo{Material: render.NewMaterial(mf.Name, shader)}
		ml.materials[mf.Name] = info
	}
	if old, ok := ml.paths[path]; ok && old != mf.Name {
		delete(ml.materials, old)
	}
	info.Layer = mf.Layer
	info.Path = path
	info.LastLoaded = time.Now()
	ml.paths[path] = mf.Name

	if err := mf.Apply(info.Material, ml.textures); err != nil {
		err = fmt.Errorf("%s: %w", path, err)
		core.LogWarn(err.Error())
		return info.Material, err
	}
	core.LogDebug("material %s loaded from %s", mf.Name, path)
	return info.Material, nil
}

func (ml *MaterialLibrary) Get(name string) (*render.Material, bool) {
	info, ok := ml.Info(name)
	if !ok {
		return nil, false
	}
	return info.Material, true
}

func (ml *MaterialLibrary) Info(name string) (MaterialInfo, bool) {
	ml.mutex.RLock()
	defer ml.mutex.RUnlock()
	info, ok := ml.materials[name]
	if !ok {
		return MaterialInfo{}, false
	}
	return *info, true
}

func (ml *MaterialLibrary) Names() []string {
	ml.mutex.RLock()
	defer ml.mutex.RUnlock()
	names := make([]string, 0, len(ml.materials))
	for name := range ml.materials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reloads counts the files reapplied because they changed on disk.
func (ml *MaterialLibrary) Reloads() uint64 {
	return ml.reloads.Load()
}

// Watch reloads material files when they are created or written.
func (ml *MaterialLibrary) Watch() error {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()
	if ml.isClosed {
		return ErrLibraryClosed
	}
	if ml.fsnotify != nil {
		return nil
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	ml.fsnotify = fsWatch
	ml.done = make(chan struct{})
	ml.stopped = make(chan struct{})

	if err := ml.watchRecursive(ml.dir); err != nil {
		fsWatch.Close()
		ml.fsnotify = nil
		return err
	}
	go ml.start(fsWatch)
	return nil
}

func (ml *MaterialLibrary) start(watcher *fsnotify.Watcher) {
	defer close(ml.stopped)
	for {
		select {
		case e, ok := <-watcher.Events:
			if !ok {
				return
			}
			ml.handleEvent(e)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			core.LogError("material watcher: %s", err.Error())

		case <-ml.done:
			return
		}
	}
}

func (ml *MaterialLibrary) handleEvent(e fsnotify.Event) {
	if e.Has(fsnotify.Create) {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			ml.mutex.Lock()
			if err := ml.watchRecursive(e.Name); err != nil {
				core.LogError("material watcher: %s", err.Error())
			}
			ml.mutex.Unlock()
			return
		}
	}
	if !isMaterialFile(e.Name) {
		return
	}

	switch {
	case e.Has(fsnotify.Create) || e.Has(fsnotify.Write):
		if m, err := ml.LoadFile(e.Name); err == nil {
			ml.reloads.Add(1)
			ml.notify(core.EVENT_CODE_MATERIAL_LOADED, m.Name(), m.Version())
		}
	case e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename):
		if name, ok := ml.removeFile(e.Name); ok {
			ml.notify(core.EVENT_CODE_MATERIAL_REMOVED, name, 0)
		}
	}
}

// watchRecursive adds dir and every directory below it. Callers hold the mutex.
func (ml *MaterialLibrary) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return ml.fsnotify.Add(path)
		}
		return nil
	})
}

// removeFile forgets the material loaded from path. Materials already in
// use stay valid, they just stop receiving updates.
func (ml *MaterialLibrary) removeFile(path string) (string, bool) {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()
	name, ok := ml.paths[path]
	if !ok {
		return "", false
	}
	delete(ml.paths, path)
	delete(ml.materials, name)
	core.LogInfo("material %s removed with %s", name, path)
	return name, true
}

// Close stops watching. Loaded materials stay usable.
func (ml *MaterialLibrary) Close() error {
	ml.mutex.Lock()
	if ml.isClosed {
		ml.mutex.Unlock()
		return nil
	}
	ml.isClosed = true
	watcher := ml.fsnotify
	ml.mutex.Unlock()

	if watcher == nil {
		return nil
	}
	close(ml.done)
	<-ml.stopped
	return watcher.Close()
}
