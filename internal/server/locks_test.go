package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionLocks(t *testing.T) {
	var locks sessionLocks

	unlockA := locks.lock("a")

	// another session is not held up
	done := make(chan struct{})
	go func() {
		locks.lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}

	// the same session is
	acquired := make(chan func())
	go func() {
		acquired <- locks.lock("a")
	}()
	select {
	case <-acquired:
		t.Fatal("second lock on a acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	select {
	case unlock := <-acquired:
		unlock()
	case <-time.After(time.Second):
		t.Fatal("second lock on a never acquired")
	}

	assert.Zero(t, locks.len())
}
