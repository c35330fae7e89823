package store

import "sync"

// setupCache is the in-process half of "compute at most once, share
// immutably forever" for the proving setup: a shared one-shot handle keyed
// by program hash, so an arbitrary number of program hashes can each get
// their own sync.Once instead of a single package-level one.
type setupCache struct {
	mu    sync.Mutex
	once  map[[32]byte]*sync.Once
	value map[[32]byte]ProvingSetup
	err   map[[32]byte]error
}

func newSetupCache() setupCache {
	return setupCache{
		once:  make(map[[32]byte]*sync.Once),
		value: make(map[[32]byte]ProvingSetup),
		err:   make(map[[32]byte]error),
	}
}

// getOrCompute runs fn at most once per key across the lifetime of the
// process, regardless of how many goroutines call concurrently; every
// caller observes the same (value, err) pair.
func (c *setupCache) getOrCompute(key [32]byte, fn func() (ProvingSetup, error)) (ProvingSetup, error) {
	c.mu.Lock()
	once, ok := c.once[key]
	if !ok {
		once = &sync.Once{}
		c.once[key] = once
	}
	c.mu.Unlock()

	once.Do(func() {
		v, err := fn()
		c.mu.Lock()
		c.value[key] = v
		c.err[key] = err
		c.mu.Unlock()
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value[key], c.err[key]
}
