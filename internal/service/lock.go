package service

import "sync"

// keyedMutex serializes operations per user id; Subscribe re-reads the
// user's row after acquiring it, so the second of two racers classifies
// against the first one's committed state. This is an in-process advisory
// lock; it is intentionally held across the gateway call instead of a
// database transaction, which stays short. A multi-process deployment would
// swap this for pg_advisory_xact_lock.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) Lock(id uint) func() {
	v, _ := k.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
