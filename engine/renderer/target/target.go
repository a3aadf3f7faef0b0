// Package target abstracts the images the renderer draws into.
package target

import (
	"sync"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// RenderTarget is a set of color images of the same extent and format, for
// example the swapchain images or offscreen images.
type RenderTarget interface {
	GetExtent() gpu.Extent
	GetFormat() gpu.Format
	GetImageViews() []gpu.Handle
	// RegisterChangeCallback registers fn to be called after the target was
	// resized or recreated. The returned id unregisters it.
	RegisterChangeCallback(fn func()) int
	UnregisterChangeCallback(id int)
}

type DepthTarget interface {
	GetImageView() gpu.Handle
	GetFormat() gpu.Format
}

// Notifier keeps change callbacks in registration order. Render targets
// embed it.
type Notifier struct {
	mu        sync.Mutex
	next      int
	ids       []int
	callbacks map[int]func()
}

func (n *Notifier) RegisterChangeCallback(fn func()) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.callbacks == nil {
		n.callbacks = make(map[int]func())
	}
	n.next++
	n.callbacks[n.next] = fn
	n.ids = append(n.ids, n.next)
	return n.next
}

func (n *Notifier) UnregisterChangeCallback(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.callbacks[id]; !ok {
		return
	}
	delete(n.callbacks, id)
	for i, v := range n.ids {
		if v == id {
			n.ids = append(n.ids[:i], n.ids[i+1:]...)
			break
		}
	}
}

// Notify invokes every registered callback. Callbacks run without the lock
// held so they may unregister themselves.
func (n *Notifier) Notify() {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.ids))
	for _, id := range n.ids {
		fns = append(fns, n.callbacks[id])
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
