package shutdown

import (
	"os"
	"sync"
	"syscall"
)

// escalation counts termination signals: the first one requests a
// graceful shutdown and the forceAt-th one calls force.
type escalation struct {
	mu      sync.Mutex
	count   int
	forceAt int
	force   func()
}

func newEscalation(forceAt int, force func()) *escalation {
	if forceAt < 1 {
		forceAt = 2
	}
	return &escalation{forceAt: forceAt, force: force}
}

// signal records one signal and reports whether it was the first.
func (e *escalation) signal() bool {
	e.mu.Lock()
	e.count++
	n := e.count
	force := e.force
	e.mu.Unlock()

	if n == e.forceAt && force != nil {
		force()
	}
	return n == 1
}

func (e *escalation) received() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// isReload reports whether sig asks for a configuration reload.
func isReload(sig os.Signal) bool {
	return sig == syscall.SIGHUP
}
