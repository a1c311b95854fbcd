package assets

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/render"
)

const MaterialExt = ".material.toml"

// MaterialFile is the on disk form of a material.
//
//	name = "brick"
//	shader = "mesh"
//	layer = 2
//
//	[params]
//	tint = [1.0, 0.5, 0.5, 1.0]
//	roughness = 0.4
//
//	[textures]
//	albedo = "bricks"
type MaterialFile struct {
	Name     string            `toml:"name"`
	Shader   string            `toml:"shader"`
	Layer    int               `toml:"layer"`
	Params   map[string]any    `toml:"params"`
	Textures map[string]string `toml:"textures"`
}

func ParseMaterialFile(data []byte) (*MaterialFile, error) {
	var mf MaterialFile
	if err := toml.Unmarshal(data, &mf); err != nil {
		return nil, err
	}
	if mf.Name == "" {
		return nil, errors.New("material has no name")
	}
	if mf.Shader == "" {
		return nil, fmt.Errorf("material %s has no shader", mf.Name)
	}
	if mf.Layer < 0 {
		return nil, fmt.Errorf("material %s: negative layer %d", mf.Name, mf.Layer)
	}
	return &mf, nil
}

func ReadMaterialFile(path string) (*MaterialFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mf, err := ParseMaterialFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mf, nil
}

// paramText turns a toml value into the text form accepted by SetParam.
func paramText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 32), nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			s, err := paramText(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, " "), nil
	}
	return "", fmt.Errorf("unsupported param value %v (%T)", v, v)
}

// Apply writes the params and textures of the file into m. Every entry is
// applied, the errors of the failing ones are joined.
func (mf *MaterialFile) Apply(m *render.Material, textures *Registry[TextureBinding]) error {
	var errs []error

	names := make([]string, 0, len(mf.Params))
	for name := range mf.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		text, err := paramText(mf.Params[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("param %s: %w", name, err))
			continue
		}
		if err := m.SetParam(name, text); err != nil {
			errs = append(errs, err)
		}
	}

	for slot, name := range mf.Textures {
		binding, ok := textures.Get(name)
		if !ok {
			errs = append(errs, fmt.Errorf("material %s: unknown texture %q for %s", mf.Name, name, slot))
			continue
		}
		if err := m.SetTexture(slot, binding.Texture, binding.Sampler); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type TextureBinding struct {
	Texture gfx.Texture
	Sampler gfx.Sampler
}

// Registry maps names to the resources material files refer to.
type Registry[T any] struct {
	mutex sync.RWMutex
	items map[string]T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

func (r *Registry[T]) Register(name string, item T) {
	r.mutex.Lock()
	r.items[name] = item
	r.mutex.Unlock()
}

func (r *Registry[T]) Get(name string) (T, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	item, ok := r.items[name]
	return item, ok
}

func (r *Registry[T]) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.items)
}
