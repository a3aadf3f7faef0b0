package loaders

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
)

// MaterialFile is the on-disk description of a material. Paths are relative
// to the asset root.
type MaterialFile struct {
	Name       string                `toml:"name"`
	Topology   string                `toml:"topology"`
	CullMode   string                `toml:"cull_mode"`
	Blend      string                `toml:"blend"`
	DepthTest  bool                  `toml:"depth_test"`
	DepthWrite bool                  `toml:"depth_write"`
	Wireframe  bool                  `toml:"wireframe"`
	Modes      map[string]ModeFile   `toml:"modes"`
	Textures   map[string]string     `toml:"textures"`
	Parameters map[string][4]float32 `toml:"parameters"`
}

type ModeFile struct {
	Vertex       string   `toml:"vertex"`
	Fragment     string   `toml:"fragment"`
	Textures     []string `toml:"textures"`
	InstanceData bool     `toml:"instance_data"`
}

var (
	renderModes = map[string]material.RenderMode{
		"color":  material.RenderModeColor,
		"shadow": material.RenderModeShadow,
	}
	textureSlots = map[string]material.TextureSlot{
		"base_color":         material.TextureSlotBaseColor,
		"normal":             material.TextureSlotNormal,
		"metallic_roughness": material.TextureSlotMetallicRoughness,
		"occlusion":          material.TextureSlotOcclusion,
		"emissive":           material.TextureSlotEmissive,
	}
	parameterSlots = map[string]material.ParameterSlot{
		"base_color_factor":  material.ParameterBaseColorFactor,
		"emissive_factor":    material.ParameterEmissiveFactor,
		"metallic_roughness": material.ParameterMetallicRoughness,
		"alpha_cutoff":       material.ParameterAlphaCutoff,
	}
	topologies = map[string]gpu.Topology{
		"triangles": gpu.TopologyTriangleList,
		"lines":     gpu.TopologyLineList,
		"points":    gpu.TopologyPointList,
	}
	cullModes = map[string]gpu.CullMode{
		"back":  gpu.CullModeBack,
		"front": gpu.CullModeFront,
		"none":  gpu.CullModeNone,
	}
	blendModes = map[string]gpu.BlendMode{
		"opaque": gpu.BlendModeOpaque,
		"alpha":  gpu.BlendModeAlpha,
	}
)

func defaultMaterialFile() MaterialFile {
	return MaterialFile{
		Topology:   "triangles",
		CullMode:   "back",
		Blend:      "opaque",
		DepthTest:  true,
		DepthWrite: true,
	}
}

func LoadMaterialFile(path string) (*MaterialFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read material '%s': %w: %w", path, core.ErrAssetLoad, err)
	}
	f, err := ParseMaterialFile(data)
	if err != nil {
		return nil, fmt.Errorf("material '%s': %w", path, err)
	}
	return f, nil
}

func ParseMaterialFile(data []byte) (*MaterialFile, error) {
	f := defaultMaterialFile()
	dec := toml.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys: %s: %w", strict.String(), core.ErrAssetLoad)
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("line %d column %d: %s: %w", row, col, derr.Error(), core.ErrAssetLoad)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every enumerated value and that at least one render mode
// declares both shader stages.
func (f *MaterialFile) Validate() error {
	var errs []error
	if f.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if _, ok := topologies[f.Topology]; !ok {
		errs = append(errs, fmt.Errorf("unknown topology '%s'", f.Topology))
	}
	if _, ok := cullModes[f.CullMode]; !ok {
		errs = append(errs, fmt.Errorf("unknown cull_mode '%s'", f.CullMode))
	}
	if _, ok := blendModes[f.Blend]; !ok {
		errs = append(errs, fmt.Errorf("unknown blend '%s'", f.Blend))
	}
	if len(f.Modes) == 0 {
		errs = append(errs, errors.New("at least one mode is required"))
	}
	for name, m := range f.Modes {
		if _, ok := renderModes[name]; !ok {
			errs = append(errs, fmt.Errorf("unknown mode '%s'", name))
		}
		if m.Vertex == "" || m.Fragment == "" {
			errs = append(errs, fmt.Errorf("mode '%s' needs a vertex and a fragment shader", name))
		}
		for _, t := range m.Textures {
			if _, ok := textureSlots[t]; !ok {
				errs = append(errs, fmt.Errorf("mode '%s': unknown texture slot '%s'", name, t))
			}
		}
	}
	for slot := range f.Textures {
		if _, ok := textureSlots[slot]; !ok {
			errs = append(errs, fmt.Errorf("unknown texture slot '%s'", slot))
		}
	}
	for slot := range f.Parameters {
		if _, ok := parameterSlots[slot]; !ok {
			errs = append(errs, fmt.Errorf("unknown parameter '%s'", slot))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
	}
	return nil
}

func (f *MaterialFile) PipelineState() material.PipelineState {
	return material.PipelineState{
		Topology:   topologies[f.Topology],
		CullMode:   cullModes[f.CullMode],
		Blend:      blendModes[f.Blend],
		DepthTest:  f.DepthTest,
		DepthWrite: f.DepthWrite,
		Wireframe:  f.Wireframe,
	}
}

// ModeNames returns the declared modes in a stable order.
func (f *MaterialFile) ModeNames() []string {
	names := make([]string, 0, len(f.Modes))
	for n := range f.Modes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func RenderMode(name string) (material.RenderMode, bool) {
	m, ok := renderModes[name]
	return m, ok
}

func TextureSlot(name string) (material.TextureSlot, bool) {
	s, ok := textureSlots[name]
	return s, ok
}

func (m ModeFile) TextureSlots() []material.TextureSlot {
	slots := make([]material.TextureSlot, 0, len(m.Textures))
	for _, t := range m.Textures {
		slots = append(slots, textureSlots[t])
	}
	return slots
}

func (f *MaterialFile) DefaultParameters() map[material.ParameterSlot]math.Vec4 {
	out := make(map[material.ParameterSlot]math.Vec4, len(f.Parameters))
	for name, v := range f.Parameters {
		out[parameterSlots[name]] = math.NewVec4(v[0], v[1], v[2], v[3])
	}
	return out
}
