package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/lumen/engine/core"
)

func TestTranslateKey(t *testing.T) {
	cases := map[glfw.Key]core.KeyCode{
		glfw.KeyA:         core.KEY_A,
		glfw.KeyW:         core.KEY_W,
		glfw.KeyZ:         core.KEY_Z,
		glfw.Key0:         core.KEY_0,
		glfw.Key9:         core.KEY_9,
		glfw.KeyF1:        core.KEY_F1,
		glfw.KeyF12:       core.KEY_F12,
		glfw.KeyEscape:    core.KEY_ESCAPE,
		glfw.KeyLeftShift: core.KEY_LSHIFT,
		glfw.KeyUp:        core.KEY_UP,
	}
	for in, want := range cases {
		got, ok := TranslateKey(in)
		assert.True(t, ok, "key %d", in)
		assert.Equal(t, want, got, "key %d", in)
	}

	_, ok := TranslateKey(glfw.KeyKPEnter)
	assert.False(t, ok)
}

func TestTranslateButton(t *testing.T) {
	b, ok := TranslateButton(glfw.MouseButtonRight)
	assert.True(t, ok)
	assert.Equal(t, core.BUTTON_RIGHT, b)

	_, ok = TranslateButton(glfw.MouseButton4)
	assert.False(t, ok)
}
