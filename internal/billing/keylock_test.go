package billing

import (
	"sync"
	"testing"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	locks := newKeyLock()

	const workers = 16
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			unlock := locks.Lock("sub_1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Fatalf("expected %d increments, got %d", workers, counter)
	}
	if len(locks.locks) != 0 {
		t.Fatalf("expected lock map to drain, got %d entries", len(locks.locks))
	}
}

func TestKeyLock_IndependentKeysDoNotBlock(t *testing.T) {
	locks := newKeyLock()

	unlockA := locks.Lock("sub_a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("sub_b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
