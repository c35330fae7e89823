package store

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSetupCacheComputesOnce(t *testing.T) {
	c := newSetupCache()
	var calls int64
	var key [32]byte
	key[0] = 7

	var wg sync.WaitGroup
	results := make([]ProvingSetup, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.getOrCompute(key, func() (ProvingSetup, error) {
				atomic.AddInt64(&calls, 1)
				return ProvingSetup{ProgramHash: key}, nil
			})
			if err != nil {
				t.Errorf("getOrCompute: %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected compute to run exactly once, ran %d times", calls)
	}
	for _, r := range results {
		if r.ProgramHash != key {
			t.Fatalf("expected all callers to observe the same result")
		}
	}
}

func TestSetupCacheDistinguishesKeys(t *testing.T) {
	c := newSetupCache()
	var a, b [32]byte
	a[0] = 1
	b[0] = 2

	va, _ := c.getOrCompute(a, func() (ProvingSetup, error) { return ProvingSetup{ProgramHash: a}, nil })
	vb, _ := c.getOrCompute(b, func() (ProvingSetup, error) { return ProvingSetup{ProgramHash: b}, nil })

	if va.ProgramHash == vb.ProgramHash {
		t.Fatal("expected distinct keys to compute distinct results")
	}
}
