package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocker_SerializesSameKey(t *testing.T) {
	var l Locker

	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			unlock := l.Lock("bob@example.com")
			defer unlock()

			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		})
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Zero(t, l.Len())
}

func TestLocker_DifferentKeysDoNotBlock(t *testing.T) {
	var l Locker

	unlockA := l.Lock("alice@example.com")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock("bob@example.com")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestLocker_UnlockIdempotent(t *testing.T) {
	var l Locker

	unlock := l.Lock("k")
	assert.Equal(t, 1, l.Len())
	unlock()
	unlock()
	assert.Zero(t, l.Len())

	unlock = l.Lock("k")
	unlock()
}
