package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func spirv(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

var minimalModule = spirv(0x07230203, 0x00010000, 0, 1, 0)

func TestTypeOf(t *testing.T) {
	assert.Equal(t, TypeShader, TypeOf("shaders/basic.vert.spv"))
	assert.Equal(t, TypeImage, TypeOf("textures/crate.PNG"))
	assert.Equal(t, TypeImage, TypeOf("textures/sky.webp"))
	assert.Equal(t, TypeMaterial, TypeOf("materials/crate.material.toml"))
	assert.Equal(t, TypeNone, TypeOf("engine.toml"))
	assert.Equal(t, TypeNone, TypeOf("shaders/basic.vert"))
}

func TestManagerIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "shaders/a.vert.spv", minimalModule)
	writeFile(t, root, "shaders/a.frag.spv", minimalModule)
	writeFile(t, root, "materials/a.material.toml", []byte("name = \"a\"\n"))
	writeFile(t, root, "README.txt", []byte("ignored"))

	m, err := NewManager(root, nil, false)
	require.NoError(t, err)
	defer m.Close()

	info, ok := m.Lookup("shaders/a.vert.spv")
	require.True(t, ok)
	assert.Equal(t, TypeShader, info.Type)

	_, ok = m.Lookup("README.txt")
	assert.False(t, ok)

	shaders := m.List(TypeShader)
	require.Len(t, shaders, 2)
	assert.Equal(t, "shaders/a.frag.spv", shaders[0].Path)
	assert.Equal(t, filepath.Join(root, "shaders", "a.frag.spv"), m.Resolve(shaders[0].Path))

	assert.Nil(t, m.Poll())
}

func TestManagerRootMustExist(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "missing"), nil, false)
	assert.Error(t, err)
}

func TestManagerWatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "shaders/a.vert.spv", minimalModule)

	events := core.NewEventBus()
	var fired []string
	events.Register(core.EVENT_CODE_ASSET_CHANGED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		fired = append(fired, sender.(string))
		return false
	})

	m, err := NewManager(root, events, true)
	require.NoError(t, err)
	defer m.Close()

	writeFile(t, root, "shaders/a.vert.spv", spirv(0x07230203, 0x00010000, 0, 2, 0))
	writeFile(t, root, "notes.txt", []byte("ignored"))

	var changed []string
	require.Eventually(t, func() bool {
		changed = append(changed, m.Poll()...)
		return len(changed) > 0
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{"shaders/a.vert.spv"}, changed)
	assert.Equal(t, changed, fired)
}

func TestManagerWatchNewDirectory(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, nil, true)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, os.Mkdir(filepath.Join(root, "textures"), 0o755))
	// the watch on the new directory is added asynchronously
	require.Eventually(t, func() bool {
		writeFile(t, root, "textures/a.png", []byte("png"))
		return len(m.Poll()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	_, ok := m.Lookup("textures/a.png")
	assert.True(t, ok)
}

func TestManagerCloseTwice(t *testing.T) {
	m, err := NewManager(t.TempDir(), nil, true)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
