// Package mock provides in-memory simulations of the external yield sources
// and the custodian. They back the tests and the console's simulated network.
package mock

import (
	"errors"
	"sync"
)

// ErrInsufficient is returned when a simulated balance cannot cover a call.
var ErrInsufficient = errors.New("mock: insufficient balance")

// faults holds errors injected by tests, keyed by operation name. An injected
// error is returned by every call of that operation until cleared.
type faults struct {
	mu     sync.Mutex
	byName map[string]error
}

// FailOn makes every subsequent call of op return err. A nil err clears it.
func (f *faults) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byName == nil {
		f.byName = make(map[string]error)
	}
	if err == nil {
		delete(f.byName, op)
		return
	}
	f.byName[op] = err
}

func (f *faults) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byName[op]
}
