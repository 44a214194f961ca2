package storage

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestLockTableSerializesOverlappingSets(t *testing.T) {
	defer goleak.VerifyNone(t)

	lt := NewLockTable()
	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys := []string{"a", "b"}
			if i%2 == 0 {
				keys = []string{"b", "a", "a"}
			}
			unlock := lt.Lock(keys...)
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, lt.Held(), "entries are released once unused")
}

func TestLockTableDisjointKeysDoNotBlock(t *testing.T) {
	lt := NewLockTable()
	unlockA := lt.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		lt.Lock("b")()
		close(done)
	}()
	<-done
	assert.Equal(t, 1, lt.Held())
}
