package vulkan

import "sync"

type lockGroup string

const (
	descriptorManagement  lockGroup = "descriptor_management"
	commandPoolManagement lockGroup = "command_pool_management"
)

// lockPool serialises access to objects Vulkan requires external
// synchronisation for: queues, command pools and descriptor pools.
type lockPool struct {
	mu     sync.Mutex
	groups map[lockGroup]*sync.Mutex
	queues map[uint32]*sync.Mutex
}

func newLockPool() *lockPool {
	return &lockPool{
		groups: make(map[lockGroup]*sync.Mutex),
		queues: make(map[uint32]*sync.Mutex),
	}
}

func (p *lockPool) group(g lockGroup) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.groups[g]
	if !ok {
		l = &sync.Mutex{}
		p.groups[g] = l
	}
	return l
}

func (p *lockPool) call(g lockGroup, fn func() error) error {
	l := p.group(g)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (p *lockPool) addQueue(family uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.queues[family]; !ok {
		p.queues[family] = &sync.Mutex{}
	}
}

// queueCall runs fn holding the lock of the queue family. The pool lock is
// released first so calls on different queues do not block each other.
func (p *lockPool) queueCall(family uint32, fn func() error) error {
	p.mu.Lock()
	l, ok := p.queues[family]
	if !ok {
		l = &sync.Mutex{}
		p.queues[family] = l
	}
	p.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn()
}
